package applecontainer

import "github.com/Strob0t/RunForge/internal/port/engine"

func init() {
	engine.Register(engineName, func() engine.Engine {
		return New()
	})
}

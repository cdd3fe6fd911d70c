package gitlab

import "github.com/Strob0t/RunForge/internal/port/gitprovider"

func init() {
	gitprovider.Register(providerName, func(baseURL, token string) gitprovider.Provider {
		return NewProvider(baseURL, token)
	})
}

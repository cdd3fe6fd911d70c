package main

// Backend blank imports. Each import activates a self-registering engine or
// provider adapter; add new backends here as they are implemented.

import (
	_ "github.com/Strob0t/RunForge/internal/adapter/applecontainer"
	_ "github.com/Strob0t/RunForge/internal/adapter/docker"
	_ "github.com/Strob0t/RunForge/internal/adapter/github"
	_ "github.com/Strob0t/RunForge/internal/adapter/gitlab"
	_ "github.com/Strob0t/RunForge/internal/adapter/podman"
)

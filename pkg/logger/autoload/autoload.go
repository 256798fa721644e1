// Package autoload initializes the global logger from LOG_* environment
// variables on import.
package autoload

import (
	configx "github.com/forrest321/aifi/pkg/config"
	logx "github.com/forrest321/aifi/pkg/logger"
)

func init() {
	cfg := configx.MustNew[logx.Config]("LOG")
	logx.Init(*cfg)
}

// Package autoload configures the global logger from the environment as a
// side effect of import.
package autoload

import (
	configx "github.com/dhrits/job-hopper/pkg/config"
	logx "github.com/dhrits/job-hopper/pkg/logger"
)

func init() {
	cfg, err := configx.New[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		return
	}
	logx.Init(*cfg)
}

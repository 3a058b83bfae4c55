package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/RyanBlaney/sonido-sync/config"
	"github.com/RyanBlaney/sonido-sync/logging"
)

type commandContext struct {
	configFlag   *string
	taskFlag     *string
	logLevelFlag *string

	configOnce sync.Once
	config     config.Config
	configErr  error
}

func newCommandContext(configFlag, taskFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		taskFlag:     taskFlag,
		logLevelFlag: logLevelFlag,
	}
}

// ensureConfig loads the config file, applies the task string and sets the log level
func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		cfg := config.Default()
		if path := strings.TrimSpace(*c.configFlag); path != "" {
			loaded, err := config.LoadFile(path)
			if err != nil {
				c.configErr = err
				return
			}
			cfg = loaded
		}

		if task := strings.TrimSpace(*c.taskFlag); task != "" {
			applied, err := cfg.ApplyTaskString(task)
			if err != nil {
				c.configErr = fmt.Errorf("task: %w", err)
				return
			}
			cfg = applied
		}

		levelName := cfg.Logging.Level
		if flag := strings.TrimSpace(*c.logLevelFlag); flag != "" {
			levelName = flag
		}
		level, ok := logging.ParseLevel(levelName)
		if !ok {
			c.configErr = fmt.Errorf("unknown log level %q", levelName)
			return
		}
		logging.SetLevel(level)

		c.config = cfg
	})
	return c.config, c.configErr
}

package log

import (
	"io"
	"path/filepath"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/magnetconv/magnetconv/config"
)

const FileName = "magnetconv.log"

// Load configures the global zerolog logger: colored console output plus an
// optional rotated log file.
func Load(conf *config.Log) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if conf.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	console := zerolog.ConsoleWriter{
		Out:        colorable.NewColorableStdout(),
		TimeFormat: time.RFC3339,
	}

	writers := []io.Writer{console}
	if conf.Path != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   filepath.Join(conf.Path, FileName),
			MaxSize:    conf.MaxSize,
			MaxBackups: conf.MaxBackups,
			MaxAge:     conf.MaxAge,
		})
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().Timestamp().Logger()
}

package render

import (
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/vlcpanel/internal/app/reconcile"
	"github.com/osa030/vlcpanel/internal/domain/snapshot"
)

// LogSinkConfig represents the configuration for LogSink.
type LogSinkConfig struct {
	Level      string   `yaml:"level" mapstructure:"level" default:"debug" validate:"oneof=debug info warn"`
	SkipFields []string `yaml:"skip_fields" mapstructure:"skip_fields"`
}

// LogSink writes every render operation to the log.
type LogSink struct {
	level zerolog.Level
	skip  []reconcile.Field
}

// NewLogSink creates a log sink at debug level.
func NewLogSink() *LogSink {
	return &LogSink{level: zerolog.DebugLevel}
}

func (s *LogSink) Name() string {
	return "log"
}

func (s *LogSink) Description() string {
	return "Logs render operations"
}

func (s *LogSink) ValidateConfig(settings map[string]any) error {
	var config LogSinkConfig

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &config,
		TagName: "mapstructure",
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}

	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	if err := defaults.Set(&config); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		return errors.Wrap(err, "invalid level")
	}
	s.level = level
	s.skip = lo.Map(config.SkipFields, func(f string, _ int) reconcile.Field { return reconcile.Field(f) })
	zlog.Info().Msgf("log sink config: %+v", config)
	return nil
}

// Apply implements Sink.
func (s *LogSink) Apply(queue snapshot.Queue, ops []reconcile.RenderOp) {
	for _, op := range ops {
		if op.Field != "" && lo.Contains(s.skip, op.Field) {
			continue
		}
		zlog.WithLevel(s.level).Msgf("render[%s]: %s", queue, op)
	}
}

func init() {
	Register("log", func() Plugin {
		return NewLogSink()
	})
}

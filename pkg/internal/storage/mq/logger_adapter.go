package mq

import (
	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	nlog "github.com/yeisme/flowvault/pkg/log"
)

// zerologAdapter 把 watermill 日志写到 component=mq 的 zerolog 上.
// watermill 的 Info 较多，统一降一级输出.
type zerologAdapter struct {
	l zerolog.Logger
}

func newLoggerAdapter() *zerologAdapter {
	return &zerologAdapter{l: nlog.Component("mq")}
}

func withFields(ev *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	return ev.Fields(map[string]any(fields))
}

func (z *zerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	withFields(z.l.Error().Err(err), fields).Msg(msg)
}

func (z *zerologAdapter) Info(msg string, fields watermill.LogFields) {
	withFields(z.l.Debug(), fields).Msg(msg)
}

func (z *zerologAdapter) Debug(msg string, fields watermill.LogFields) {
	withFields(z.l.Trace(), fields).Msg(msg)
}

func (z *zerologAdapter) Trace(msg string, fields watermill.LogFields) {
	withFields(z.l.Trace(), fields).Msg(msg)
}

func (z *zerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &zerologAdapter{l: z.l.With().Fields(map[string]any(fields)).Logger()}
}

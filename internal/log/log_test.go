package log

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestReplace_CapturesEntries(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Replace(zap.New(core))
	defer Replace(zap.NewNop())

	Info("rule created", "rule_id", "se.custom")
	Error("apply failed", errors.New("disk full"), "rule_id", "se.custom")

	entries := logs.AllUntimed()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "rule created", entries[0].Message)
		assert.Equal(t, "se.custom", entries[0].ContextMap()["rule_id"])
		assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
		assert.Equal(t, "disk full", entries[1].ContextMap()["err"])
	}
}

func TestReplace_WhileLogging(t *testing.T) {
	defer Replace(zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				Debug("tick", "n", j)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				core, _ := observer.New(zapcore.DebugLevel)
				Replace(zap.New(core))
			}
		}()
	}
	wg.Wait()
}

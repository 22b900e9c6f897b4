/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package output

import (
	"errors"
	"fmt"
	"github.com/traas-stack/holoinsight-ingest/pkg/appconfig"
	"github.com/traas-stack/holoinsight-ingest/pkg/logger"
	"strings"
	"sync"
)

const (
	ConsoleType = "console"
	NatsType    = "nats"
)

var (
	ErrUnknownPublisherType = errors.New("unknown publisher type")
)

type (
	Factory func(*appconfig.IngestConfig) (Publisher, error)
)

var (
	factories   = make(map[string]Factory)
	factoriesMu sync.RWMutex
)

func Register(outputType string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, exist := factories[outputType]; exist {
		logger.Warnf("[plugin] register output factory %+v already exist, cover it", outputType)
	}
	factories[outputType] = factory
}

func Parse(outputType string, cfg *appconfig.IngestConfig) (Publisher, error) {
	if outputType == "" {
		outputType = ConsoleType
	}
	factoriesMu.RLock()
	f, ok := factories[outputType]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPublisherType, outputType)
	}
	return f(cfg)
}

// ParseList builds one publisher per comma separated type and combines them.
// Already built publishers are closed when a later one fails.
func ParseList(types string, cfg *appconfig.IngestConfig) (Publisher, error) {
	var built []Publisher
	for _, t := range strings.Split(types, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		p, err := Parse(t, cfg)
		if err != nil {
			for _, b := range built {
				b.Close()
			}
			return nil, err
		}
		built = append(built, p)
	}
	if len(built) == 0 {
		return Parse(ConsoleType, cfg)
	}
	return Composite(built...), nil
}

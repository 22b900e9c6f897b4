/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package tagregistry

import (
	"context"
	"fmt"
	"github.com/pkg/errors"
	"github.com/traas-stack/holoinsight-ingest/pkg/logger"
	"github.com/traas-stack/holoinsight-ingest/pkg/model"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"math"
	"os"
	"strings"
	"time"
)

type (
	// Source is a named, re-readable resource of tag definitions.
	Source interface {
		Name() string
		// Load reads the full definition set. Malformed entries are skipped, not returned as errors.
		Load(ctx context.Context) ([]*model.TagDefinition, error)
		// Marker returns a monotonically comparable "last changed" marker.
		Marker(ctx context.Context) (time.Time, error)
	}

	// FileSource reads tag definitions from a yaml file. Its marker is the file modification time.
	// The file is either a list of definitions or a mapping with a "tags" list.
	FileSource struct {
		Path string
	}
)

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (f *FileSource) Name() string {
	return "file:" + f.Path
}

func (f *FileSource) Marker(ctx context.Context) (time.Time, error) {
	st, err := os.Stat(f.Path)
	if err != nil {
		return time.Time{}, err
	}
	return st.ModTime(), nil
}

func (f *FileSource) Load(ctx context.Context) ([]*model.TagDefinition, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "read tag file %s", f.Path)
	}
	return ParseDefinitions(b)
}

// ParseDefinitions decodes yaml bytes into tag definitions. Each entry is decoded on its own so
// one bad entry does not abort the rest.
func ParseDefinitions(b []byte) ([]*model.TagDefinition, error) {
	root := &yaml.Node{}
	if err := yaml.Unmarshal(b, root); err != nil {
		return nil, errors.Wrap(err, "parse tag definitions")
	}
	if root.Kind == 0 {
		// empty document
		return nil, nil
	}
	items, err := definitionNodes(root)
	if err != nil {
		return nil, err
	}

	defs := make([]*model.TagDefinition, 0, len(items))
	for i, item := range items {
		def := &model.TagDefinition{}
		if err := item.Decode(def); err != nil {
			logger.Warnz("[tags] skip malformed entry", zap.Int("index", i), zap.Int("line", item.Line), zap.Error(err))
			continue
		}
		def.ID = strings.TrimSpace(def.ID)
		if err := validate(def); err != nil {
			logger.Warnz("[tags] skip invalid entry", zap.Int("index", i), zap.Int("line", item.Line), zap.Error(err))
			continue
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func definitionNodes(root *yaml.Node) ([]*yaml.Node, error) {
	doc := root
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return nil, nil
		}
		doc = doc.Content[0]
	}
	switch doc.Kind {
	case yaml.SequenceNode:
		return doc.Content, nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(doc.Content); i += 2 {
			if doc.Content[i].Value == "tags" {
				v := doc.Content[i+1]
				if v.Kind != yaml.SequenceNode {
					return nil, fmt.Errorf("line %d: tags must be a list", v.Line)
				}
				return v.Content, nil
			}
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("line %d: unexpected tag document", doc.Line)
	}
}

func validate(def *model.TagDefinition) error {
	if def.ID == "" {
		return errors.New("missing tag id")
	}
	if def.Deadband != nil {
		if !isFinite(*def.Deadband) || *def.Deadband < 0 {
			return fmt.Errorf("tag %s: invalid deadband %v", def.ID, *def.Deadband)
		}
	}
	if def.ScaleFactor != nil && !isFinite(*def.ScaleFactor) {
		return fmt.Errorf("tag %s: invalid scaleFactor", def.ID)
	}
	if def.ScaleOffset != nil && !isFinite(*def.ScaleOffset) {
		return fmt.Errorf("tag %s: invalid scaleOffset", def.ID)
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

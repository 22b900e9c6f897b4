/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package input

import (
	"bytes"
	"encoding/json"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/traas-stack/holoinsight-ingest/pkg/model"
	"math"
	"strings"
	"time"
)

const (
	// epoch values above this are taken as milliseconds
	epochMillisThreshold = 1e11
)

// DecodeReadings decodes a JSON object or array of objects into readings.
// Recognized keys: tagId, value, quality, timestamp, unit, site, asset. Value may be a number,
// a numeric string or a bool. Missing quality means Good, missing timestamp means now,
// missing site means defaultSite. Entries that cannot be converted are skipped and counted.
func DecodeReadings(b []byte, defaultSite string, now time.Time) ([]*model.RawReading, int, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, 0, errors.New("empty payload")
	}

	var items []map[string]interface{}
	if b[0] == '[' {
		if err := json.Unmarshal(b, &items); err != nil {
			return nil, 0, errors.Wrap(err, "decode reading array")
		}
	} else {
		item := map[string]interface{}{}
		if err := json.Unmarshal(b, &item); err != nil {
			return nil, 0, errors.Wrap(err, "decode reading")
		}
		items = append(items, item)
	}

	ret := make([]*model.RawReading, 0, len(items))
	skipped := 0
	for _, item := range items {
		r, err := convertReading(item, defaultSite, now)
		if err != nil {
			skipped++
			continue
		}
		ret = append(ret, r)
	}
	return ret, skipped, nil
}

func convertReading(item map[string]interface{}, defaultSite string, now time.Time) (*model.RawReading, error) {
	tagID := strings.TrimSpace(cast.ToString(item["tagId"]))
	if tagID == "" {
		return nil, errors.New("missing tagId")
	}
	raw, ok := item["value"]
	if !ok || raw == nil {
		return nil, errors.New("missing value")
	}
	value, err := cast.ToFloat64E(raw)
	if err != nil {
		return nil, err
	}
	if err := CheckFinite(value); err != nil {
		return nil, err
	}
	ts, err := convertTime(item["timestamp"], now)
	if err != nil {
		return nil, err
	}

	r := &model.RawReading{
		TagID:      tagID,
		Value:      value,
		Quality:    cast.ToString(item["quality"]),
		SourceTime: ts,
		Unit:       cast.ToString(item["unit"]),
		Site:       cast.ToString(item["site"]),
		Asset:      cast.ToString(item["asset"]),
	}
	if r.Quality == "" {
		r.Quality = model.QualityGood
	}
	if r.Site == "" {
		r.Site = defaultSite
	}
	return r, nil
}

func convertTime(v interface{}, now time.Time) (time.Time, error) {
	switch x := v.(type) {
	case nil:
		return now, nil
	case float64:
		if x > epochMillisThreshold {
			return time.UnixMilli(int64(x)), nil
		}
		return time.Unix(int64(x), 0), nil
	default:
		return cast.ToTimeE(x)
	}
}

// CheckFinite rejects NaN and infinities. Such values cannot be encoded downstream.
func CheckFinite(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.Errorf("non-finite value %v", v)
	}
	return nil
}

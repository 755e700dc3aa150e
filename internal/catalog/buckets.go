package catalog

import (
	"encoding/json"
	"fmt"
)

// Buckets lists the rows a snapshot is stored as, in write order.
var Buckets = []string{"definitions", "prefabs", "settings"}

type settings struct {
	DefaultPrefab string `json:"defaultPrefab,omitempty"`
}

// EncodeBuckets splits a snapshot into one JSON payload per bucket.
func EncodeBuckets(s Snapshot) (map[string][]byte, error) {
	out := make(map[string][]byte, len(Buckets))
	for _, bucket := range Buckets {
		var (
			data []byte
			err  error
		)
		switch bucket {
		case "definitions":
			data, err = json.Marshal(s.Definitions)
		case "prefabs":
			data, err = json.Marshal(s.Prefabs)
		case "settings":
			data, err = json.Marshal(settings{DefaultPrefab: s.DefaultPrefab})
		}
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", bucket, err)
		}
		out[bucket] = data
	}
	return out, nil
}

// DecodeBucket merges one stored payload into s. Unknown buckets are ignored.
func DecodeBucket(s *Snapshot, bucket string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	var err error
	switch bucket {
	case "definitions":
		err = json.Unmarshal(payload, &s.Definitions)
	case "prefabs":
		err = json.Unmarshal(payload, &s.Prefabs)
	case "settings":
		var st settings
		if err = json.Unmarshal(payload, &st); err == nil {
			s.DefaultPrefab = st.DefaultPrefab
		}
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}

package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/dshills/spotvec/internal/storage"
	"github.com/dshills/spotvec/pkg/types"
)

// Documents cross the store boundary as their JSON form so stored property
// names match the document field names.

func songObject(s types.Song) (*storage.Object, error) {
	return toObject(SongClass, s)
}

func toObject(class string, doc interface{}) (*storage.Object, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var props map[string]interface{}
	if err := json.Unmarshal(raw, &props); err != nil {
		return nil, err
	}
	return &storage.Object{Class: class, Properties: props}, nil
}

func fromObject(obj *storage.Object, out interface{}) error {
	raw, err := json.Marshal(obj.Properties)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", obj.Class, obj.ID, err)
	}
	return nil
}

func songResults(hits []storage.Hit) ([]types.SongResult, error) {
	out := make([]types.SongResult, 0, len(hits))
	for _, h := range hits {
		r := types.SongResult{ID: h.Object.ID}
		if err := fromObject(h.Object, &r.Song); err != nil {
			return nil, err
		}
		if h.Certainty != nil {
			r.Certainty = *h.Certainty
		}
		out = append(out, r)
	}
	return out, nil
}

func playlistResults(hits []storage.Hit) ([]types.PlaylistResult, error) {
	out := make([]types.PlaylistResult, 0, len(hits))
	for _, h := range hits {
		r := types.PlaylistResult{ID: h.Object.ID}
		if err := fromObject(h.Object, &r.Playlist); err != nil {
			return nil, err
		}
		if h.Certainty != nil {
			r.Certainty = *h.Certainty
		}
		out = append(out, r)
	}
	return out, nil
}

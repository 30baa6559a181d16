/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package reference

import "encoding/json"

// NormalizeForPreview returns the model as a generic JSON object in which
// null mean/std members of bands_norm_stats are removed.
func NormalizeForPreview(m *Model) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal(m.Raw, &out); err != nil {
		return nil, err
	}
	stats, ok := out["bands_norm_stats"].(map[string]any)
	if !ok {
		return out, nil
	}
	for _, v := range stats {
		pair, ok := v.(map[string]any)
		if !ok {
			continue
		}
		for _, k := range []string{"mean", "std"} {
			if val, present := pair[k]; present && val == nil {
				delete(pair, k)
			}
		}
	}
	return out, nil
}

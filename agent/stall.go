package agent

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// actionSignature computes a deterministic signature for one step
// (action name + hash of arguments). json.Marshal sorts map keys, so equal
// argument maps always hash equally.
func actionSignature(action string, args map[string]any) string {
	data, _ := json.Marshal(args)
	h := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", action, h[:8])
}

// DetectLoop checks whether the last windowSize recorded steps follow a
// repeating pattern of length 1, 2, or 3. An agent rerunning the same action
// with the same arguments is stalled, not progressing.
func DetectLoop(records []StepRecord, windowSize int) bool {
	if windowSize <= 0 || len(records) < windowSize {
		return false
	}

	recent := records[len(records)-windowSize:]
	sigs := make([]string, windowSize)
	for i, rec := range recent {
		sigs[i] = actionSignature(rec.Action, rec.Args)
	}

	for patternLen := 1; patternLen <= 3; patternLen++ {
		if windowSize%patternLen != 0 {
			continue
		}
		pattern := sigs[:patternLen]
		allMatch := true
		for i := patternLen; i < windowSize && allMatch; i += patternLen {
			for j := 0; j < patternLen; j++ {
				if sigs[i+j] != pattern[j] {
					allMatch = false
					break
				}
			}
		}
		if allMatch {
			return true
		}
	}

	return false
}

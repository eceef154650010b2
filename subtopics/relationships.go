package subtopics

import (
	"sort"
	"strings"
)

// RelationshipType classifies how two topics relate.
type RelationshipType string

const (
	RelPrerequisite RelationshipType = "prerequisite"
	RelComponent    RelationshipType = "component"
	RelRelated      RelationshipType = "related"
	RelApplication  RelationshipType = "application"
)

// Relationship is one directed edge between two extracted topics.
type Relationship struct {
	FromID   string           `json:"from_id"`
	ToID     string           `json:"to_id"`
	Type     RelationshipType `json:"type"`
	Strength float64          `json:"strength"`
}

// relationships computes pairwise edges over the flattened topic set.
// O(n^2) over at most MaxSubtopics topics, which is fine under the cap.
func (e *Extractor) relationships(flat []*ExtractedSubtopic) []Relationship {
	var out []Relationship
	for i := 0; i < len(flat); i++ {
		for j := i + 1; j < len(flat); j++ {
			rel, ok := e.relate(flat[i], flat[j])
			if ok {
				out = append(out, rel)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Strength != out[j].Strength {
			return out[i].Strength > out[j].Strength
		}
		return out[i].FromID+out[i].ToID < out[j].FromID+out[j].ToID
	})
	return out
}

// relate scores one topic pair. Every pair starts at the configured
// floor strength; only pairs above the threshold become edges.
func (e *Extractor) relate(a, b *ExtractedSubtopic) (Relationship, bool) {
	strength := e.cfg.RelationshipFloor
	relType := RelRelated

	switch {
	case a.ParentID == b.ID:
		return Relationship{FromID: a.ID, ToID: b.ID, Type: RelComponent, Strength: 0.9}, true
	case b.ParentID == a.ID:
		return Relationship{FromID: b.ID, ToID: a.ID, Type: RelComponent, Strength: 0.9}, true
	case prerequisiteOf(a, b):
		return Relationship{FromID: a.ID, ToID: b.ID, Type: RelPrerequisite, Strength: 0.8}, true
	case prerequisiteOf(b, a):
		return Relationship{FromID: b.ID, ToID: a.ID, Type: RelPrerequisite, Strength: 0.8}, true
	}

	overlap := termOverlap(terms(a), terms(b))
	if overlap > strength {
		strength = overlap
	}
	if isApplication(a) != isApplication(b) {
		relType = RelApplication
	}

	if strength <= e.cfg.RelationshipThreshold {
		return Relationship{}, false
	}
	return Relationship{FromID: a.ID, ToID: b.ID, Type: relType, Strength: strength}, true
}

// prerequisiteOf reports whether a's title appears in b's prerequisites.
func prerequisiteOf(a, b *ExtractedSubtopic) bool {
	for _, p := range b.Metadata.Prerequisites {
		if slugify(p) == a.ID {
			return true
		}
	}
	return false
}

// terms collects the lowercase term set of a topic: title words plus
// declared key terms.
func terms(n *ExtractedSubtopic) map[string]struct{} {
	set := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(n.Title)) {
		set[strings.Trim(w, ".,:;!?")] = struct{}{}
	}
	for _, t := range n.Metadata.KeyTerms {
		for _, w := range strings.Fields(strings.ToLower(t)) {
			set[strings.Trim(w, ".,:;!?")] = struct{}{}
		}
	}
	return set
}

func termOverlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func isApplication(n *ExtractedSubtopic) bool {
	t := strings.ToLower(n.Title)
	return strings.Contains(t, "application") || strings.Contains(t, "in practice") ||
		strings.Contains(t, "uses of") || strings.Contains(t, "applied")
}

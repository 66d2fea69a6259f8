package pipeline

import (
	"sort"

	"github.com/nao1215/comicscan/internal/model"
)

// runState is the record the stages fold over. Each stage reads what its
// predecessors wrote and mutates nothing outside this struct (and the
// session it holds).
type runState struct {
	// session provides the extraction cache and usage ledger.
	session *Session

	// images are the preprocessed content images, discovery order, after
	// any cap truncation.
	images []model.ContentImage

	// facts holds the current per-image record, index-aligned with images.
	// Every slot is filled after the extraction stage; failed extractions
	// hold an empty-facts placeholder, never a gap.
	facts []model.ExtractionFact

	// suspicion maps image index to the accumulated reasons. Multiple
	// reasons per index are appended, never replaced.
	suspicion map[int][]string

	// escalated counts successful fallback re-extractions.
	escalated int

	// truncated and truncationWarning record cap truncation.
	truncated         bool
	truncationWarning string

	// briefPreview is a bounded prefix of the aggregation input.
	briefPreview string

	// summary is the aggregation output; summaryFailed marks the
	// error-tagged failure text.
	summary       string
	summaryFailed bool

	// consistency is the optional title consistency report.
	consistency *model.ConsistencyReport
}

// suspect records reasons against an image index. The suspicion set is a
// set: an already-suspicious index gains reasons, not a second record.
func (s *runState) suspect(index int, reasons ...string) {
	if len(reasons) == 0 {
		return
	}
	if s.suspicion == nil {
		s.suspicion = make(map[int][]string)
	}
	s.suspicion[index] = append(s.suspicion[index], reasons...)
}

// suspiciousIndices returns the suspicion set in ascending order.
func (s *runState) suspiciousIndices() []int {
	indices := make([]int, 0, len(s.suspicion))
	for i := range s.suspicion {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	return indices
}

// suspicionRecords returns the suspicion set as ordered records.
func (s *runState) suspicionRecords() []model.SuspicionRecord {
	indices := s.suspiciousIndices()
	if len(indices) == 0 {
		return nil
	}
	records := make([]model.SuspicionRecord, 0, len(indices))
	for _, i := range indices {
		records = append(records, model.SuspicionRecord{ImageIndex: i, Reasons: s.suspicion[i]})
	}
	return records
}

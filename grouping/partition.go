// Package grouping splits a tournament's registered participants into groups.
package grouping

import (
	"errors"

	"github.com/Dosada05/scrimhub/models"
)

var ErrInvalidGroupSize = errors.New("group size must be positive")

// Chunk is one planned group: its generated name and the member user ids.
type Chunk struct {
	Name      string
	MemberIDs []int
}

// Partitioner plans groups for an ordered list of participants.
type Partitioner interface {
	Partition(participants []*models.Participant, size int) ([]Chunk, error)
	GetName() string
}

// Sequential takes participants in the given order and slices them into
// consecutive chunks of size; the last chunk may be smaller. No shuffling
// or seeding is applied.
type Sequential struct{}

func NewSequential() *Sequential {
	return &Sequential{}
}

func (Sequential) GetName() string {
	return "sequential"
}

func (Sequential) Partition(participants []*models.Participant, size int) ([]Chunk, error) {
	if size <= 0 {
		return nil, ErrInvalidGroupSize
	}

	ids := make([]int, 0, len(participants))
	seen := make(map[int]struct{}, len(participants))
	for _, p := range participants {
		if p == nil {
			continue
		}
		if _, dup := seen[p.UserID]; dup {
			continue
		}
		seen[p.UserID] = struct{}{}
		ids = append(ids, p.UserID)
	}

	chunks := make([]Chunk, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		members := make([]int, end-start)
		copy(members, ids[start:end])
		chunks = append(chunks, Chunk{
			Name:      models.GroupName(len(chunks) + 1),
			MemberIDs: members,
		})
	}
	return chunks, nil
}

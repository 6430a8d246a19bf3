package cvstore

import (
	"context"
	"errors"
	"strconv"

	pkgerrors "github.com/fedbench/fedsim/pkg/errors"
	"github.com/fedbench/fedsim/pkg/fl"
	"github.com/fedbench/fedsim/pkg/storage"
)

// Memory keeps control variates in a generic in-memory store. Intended
// for tests.
type Memory struct {
	db storage.Storage
}

func NewMemory() *Memory {
	return &Memory{db: storage.NewInMemoryStorage()}
}

func (s *Memory) Load(ctx context.Context, clientID int) (fl.Parameters, bool, error) {
	data, err := s.db.Get(ctx, strconv.Itoa(clientID))
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	cv, ok := data.(fl.Parameters)
	if !ok {
		return nil, false, pkgerrors.ErrInvalidData
	}

	return cv.Clone(), true, nil
}

func (s *Memory) Save(ctx context.Context, clientID int, cv fl.Parameters) error {
	return s.db.Update(ctx, strconv.Itoa(clientID), cv.Clone())
}

package users

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/xid"
)

// DefaultID is the id every user gets with the fixed strategy.
const DefaultID = "1"

// IDGenerator produces user ids.
type IDGenerator interface {
	NextID() string
}

// IDFunc adapts a function to IDGenerator.
type IDFunc func() string

// NextID implements IDGenerator.
func (f IDFunc) NextID() string { return f() }

// FixedID returns the same id for every user.
func FixedID(id string) IDGenerator {
	return IDFunc(func() string { return id })
}

// SequenceIDs returns "1", "2", "3", ... and is safe for concurrent use.
func SequenceIDs() IDGenerator {
	var n atomic.Int64
	return IDFunc(func() string {
		return strconv.FormatInt(n.Add(1), 10)
	})
}

// UUIDs returns random version 4 UUIDs.
func UUIDs() IDGenerator {
	return IDFunc(uuid.NewString)
}

// XIDs returns globally unique, sortable xids.
func XIDs() IDGenerator {
	return IDFunc(func() string { return xid.New().String() })
}

// ID strategy names accepted by ParseIDStrategy.
const (
	StrategyFixed    = "fixed"
	StrategySequence = "sequence"
	StrategyUUID     = "uuid"
	StrategyXID      = "xid"
)

// IDStrategies lists the valid strategy names.
var IDStrategies = []string{StrategyFixed, StrategySequence, StrategyUUID, StrategyXID}

// ParseIDStrategy returns the generator for a strategy name. The empty
// name selects the fixed strategy.
func ParseIDStrategy(name string) (IDGenerator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrategyFixed:
		return FixedID(DefaultID), nil
	case StrategySequence:
		return SequenceIDs(), nil
	case StrategyUUID:
		return UUIDs(), nil
	case StrategyXID:
		return XIDs(), nil
	}
	return nil, fmt.Errorf("unknown id strategy %q (want one of %s)", name, strings.Join(IDStrategies, ", "))
}

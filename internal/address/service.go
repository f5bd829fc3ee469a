// Package address manages the user's address book. Each user has at most one
// default address, which checkout preselects.
package address

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-checkout/internal/common"
)

var (
	// ErrNotFound is returned when the address does not exist for the user.
	ErrNotFound = errors.New("address: not found")
	// ErrDefaultTaken signals a concurrent writer already created the default.
	ErrDefaultTaken = errors.New("address: default already set")
)

// Address is a delivery address in API form.
type Address struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Line1     string    `json:"line1"`
	Line2     string    `json:"line2,omitempty"`
	Landmark  string    `json:"landmark,omitempty"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Pincode   string    `json:"pincode"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Input is the create/update payload.
type Input struct {
	Name      string `json:"name" validate:"required,max=100"`
	Phone     string `json:"phone" validate:"required,len=10,numeric"`
	Line1     string `json:"line1" validate:"required,max=200"`
	Line2     string `json:"line2" validate:"max=200"`
	Landmark  string `json:"landmark" validate:"max=100"`
	City      string `json:"city" validate:"required,max=100"`
	State     string `json:"state" validate:"required,max=100"`
	Pincode   string `json:"pincode" validate:"required,len=6,numeric"`
	IsDefault bool   `json:"is_default"`
}

func (in Input) normalized() Input {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Line1 = strings.TrimSpace(in.Line1)
	in.Line2 = strings.TrimSpace(in.Line2)
	in.Landmark = strings.TrimSpace(in.Landmark)
	in.City = strings.TrimSpace(in.City)
	in.State = strings.TrimSpace(in.State)
	in.Pincode = strings.TrimSpace(in.Pincode)
	return in
}

// Service implements address book operations.
type Service struct {
	Store  Store
	Logger zerolog.Logger
}

// List returns the user's addresses, default first.
func (s *Service) List(ctx context.Context, userID string) ([]Address, error) {
	list, err := s.Store.List(ctx, userID)
	if err != nil {
		return nil, common.Upstream(err)
	}
	return list, nil
}

// Get returns one address.
func (s *Service) Get(ctx context.Context, userID, id string) (Address, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Address{}, common.NotFound("address")
	}
	a, err := s.Store.Get(ctx, userID, id)
	return a, mapErr(err)
}

// GetDefault returns the default address. ErrNotFound (wrapped in a 404) when
// the user has none.
func (s *Service) GetDefault(ctx context.Context, userID string) (Address, error) {
	a, err := s.Store.Default(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return Address{}, common.NewAppError("NO_DEFAULT_ADDRESS", "no default address", http.StatusNotFound, err)
	}
	if err != nil {
		return Address{}, common.Upstream(err)
	}
	return a, nil
}

// Create adds an address. The user's first address becomes the default.
func (s *Service) Create(ctx context.Context, userID string, in Input) (Address, error) {
	in = in.normalized()
	if err := common.ValidateStruct(in); err != nil {
		return Address{}, err
	}
	var created Address
	err := s.Store.InTx(ctx, func(st Store) error {
		makeDefault := in.IsDefault
		if _, err := st.Default(ctx, userID); errors.Is(err, ErrNotFound) {
			makeDefault = true
		} else if err != nil {
			return err
		} else if makeDefault {
			if err := st.ClearDefault(ctx, userID); err != nil {
				return err
			}
		}
		var err error
		created, err = st.Insert(ctx, userID, in, makeDefault)
		return err
	})
	if errors.Is(err, ErrDefaultTaken) {
		// Lost a race for the first address; keep this one as a regular entry.
		created, err = s.Store.Insert(ctx, userID, in, false)
	}
	if err != nil {
		return Address{}, common.Upstream(err)
	}
	return created, nil
}

// Update replaces an address's fields. is_default=true also makes it the default.
func (s *Service) Update(ctx context.Context, userID, id string, in Input) (Address, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Address{}, common.NotFound("address")
	}
	in = in.normalized()
	if err := common.ValidateStruct(in); err != nil {
		return Address{}, err
	}
	var updated Address
	err := s.Store.InTx(ctx, func(st Store) error {
		var err error
		if updated, err = st.Update(ctx, userID, id, in); err != nil {
			return err
		}
		if in.IsDefault && !updated.IsDefault {
			if err := makeDefault(ctx, st, userID, id); err != nil {
				return err
			}
			updated.IsDefault = true
		}
		return nil
	})
	return updated, mapErr(err)
}

// Delete removes an address. If it was the default, the most recently created
// remaining address is promoted.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return common.NotFound("address")
	}
	err := s.Store.InTx(ctx, func(st Store) error {
		wasDefault, err := st.Delete(ctx, userID, id)
		if err != nil || !wasDefault {
			return err
		}
		next, err := st.Latest(ctx, userID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return st.MarkDefault(ctx, userID, next.ID)
	})
	return mapErr(err)
}

// SetDefault clears all defaults and marks id in one transaction.
func (s *Service) SetDefault(ctx context.Context, userID, id string) (Address, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Address{}, common.NotFound("address")
	}
	var a Address
	err := s.Store.InTx(ctx, func(st Store) error {
		var err error
		if a, err = st.Get(ctx, userID, id); err != nil {
			return err
		}
		if a.IsDefault {
			return nil
		}
		if err := makeDefault(ctx, st, userID, id); err != nil {
			return err
		}
		a.IsDefault = true
		return nil
	})
	return a, mapErr(err)
}

func makeDefault(ctx context.Context, st Store, userID, id string) error {
	if err := st.ClearDefault(ctx, userID); err != nil {
		return err
	}
	return st.MarkDefault(ctx, userID, id)
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return common.NotFound("address")
	default:
		return common.Upstream(err)
	}
}

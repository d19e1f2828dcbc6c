// Package id defines the TypeID-based identifiers used by every Pinnity entity.
//
// An ID renders as "prefix_suffix" where the prefix names the entity type
// (deal_01h2x...). IDs are UUIDv7 based, so they sort by creation time.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in an ID.
type Prefix string

const (
	PrefixUser         Prefix = "user"
	PrefixBusiness     Prefix = "biz"
	PrefixDeal         Prefix = "deal"
	PrefixApproval     Prefix = "dapr"
	PrefixFavorite     Prefix = "fav"
	PrefixRedemption   Prefix = "rdm"
	PrefixRating       Prefix = "rate"
	PrefixPreference   Prefix = "npref"
	PrefixNotification Prefix = "ntf"
)

// ID wraps a TypeID. The zero value is Nil and stores as NULL.
//
//nolint:recvcheck // value receivers for reads, pointer receivers for decoding
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates an ID with the given prefix. It panics on an invalid prefix,
// which can only happen through a programming error.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

// Parse parses "prefix_suffix" without checking the prefix.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses s and requires the given prefix.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}
	return parsed, nil
}

// MustParse is Parse for hardcoded values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}
	return parsed
}

func NewUserID() ID         { return New(PrefixUser) }
func NewBusinessID() ID     { return New(PrefixBusiness) }
func NewDealID() ID         { return New(PrefixDeal) }
func NewApprovalID() ID     { return New(PrefixApproval) }
func NewFavoriteID() ID     { return New(PrefixFavorite) }
func NewRedemptionID() ID   { return New(PrefixRedemption) }
func NewRatingID() ID       { return New(PrefixRating) }
func NewPreferenceID() ID   { return New(PrefixPreference) }
func NewNotificationID() ID { return New(PrefixNotification) }

func ParseUserID(s string) (ID, error)         { return ParseWithPrefix(s, PrefixUser) }
func ParseBusinessID(s string) (ID, error)     { return ParseWithPrefix(s, PrefixBusiness) }
func ParseDealID(s string) (ID, error)         { return ParseWithPrefix(s, PrefixDeal) }
func ParseRedemptionID(s string) (ID, error)   { return ParseWithPrefix(s, PrefixRedemption) }
func ParseNotificationID(s string) (ID, error) { return ParseWithPrefix(s, PrefixNotification) }

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// Prefix returns the entity prefix of the ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

// IsNil reports whether the ID is the zero value.
func (i ID) IsNil() bool { return !i.valid }

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}
	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value implements driver.Valuer. Nil stores as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // NULL
	}
	return i.inner.String(), nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}

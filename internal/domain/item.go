package domain

import (
	"fmt"
	"strings"
)

// ItemStatus represents the lifecycle state of a single archive entry.
type ItemStatus string

const (
	StatusUnhandled                ItemStatus = "UNHANDLED"
	StatusInProgress               ItemStatus = "IN_PROGRESS"
	StatusLegalIDFound             ItemStatus = "RECIPIENT_LEGAL_ID_FOUND"
	StatusLegalIDNotFoundOrInvalid ItemStatus = "RECIPIENT_LEGAL_ID_NOT_FOUND_OR_INVALID"
	StatusPartyIDFound             ItemStatus = "RECIPIENT_PARTY_ID_FOUND"
	StatusPartyIDNotFound          ItemStatus = "RECIPIENT_PARTY_ID_NOT_FOUND"
	StatusMetadataIncomplete       ItemStatus = "METADATA_INCOMPLETE"
	StatusIgnored                  ItemStatus = "IGNORED"
	StatusSent                     ItemStatus = "SENT"
	StatusNotSent                  ItemStatus = "NOT_SENT"
)

func (s ItemStatus) String() string { return string(s) }

func (s ItemStatus) IsValid() bool {
	switch s {
	case StatusUnhandled, StatusInProgress,
		StatusLegalIDFound, StatusLegalIDNotFoundOrInvalid,
		StatusPartyIDFound, StatusPartyIDNotFound,
		StatusMetadataIncomplete, StatusIgnored,
		StatusSent, StatusNotSent:
		return true
	}
	return false
}

// IsTerminal reports whether an item in this status is done for the run.
// Terminal items are recorded and excluded from every later pipeline stage.
func (s ItemStatus) IsTerminal() bool {
	switch s {
	case StatusIgnored, StatusMetadataIncomplete,
		StatusLegalIDNotFoundOrInvalid, StatusPartyIDNotFound,
		StatusSent, StatusNotSent:
		return true
	}
	return false
}

// IsProcessable reports whether the next pipeline stage may advance the item.
func (s ItemStatus) IsProcessable() bool {
	return s.IsValid() && !s.IsTerminal()
}

func ParseItemStatusFromString(v string) (ItemStatus, error) {
	st := ItemStatus(strings.ToUpper(strings.TrimSpace(v)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid item status %q", ErrValidation, v)
	}
	return st, nil
}

// ItemType classifies an archive entry.
type ItemType string

const (
	TypeInvoice ItemType = "INVOICE"
	TypeOther   ItemType = "OTHER"
	TypeUnknown ItemType = "UNKNOWN"
)

func (t ItemType) String() string { return string(t) }

func (t ItemType) IsValid() bool {
	switch t {
	case TypeInvoice, TypeOther, TypeUnknown:
		return true
	}
	return false
}

func ParseItemTypeFromString(v string) (ItemType, error) {
	it := ItemType(strings.ToUpper(strings.TrimSpace(v)))
	if !it.IsValid() {
		return "", fmt.Errorf("%w: invalid item type %q", ErrValidation, v)
	}
	return it, nil
}

// Item is one entry extracted from a batch container. Item is a value type:
// transitions return a new value and never mutate the receiver, and a
// terminal item can not be advanced again within the same run.
type Item struct {
	Filename string
	Content  []byte
	Type     ItemType
	Status   ItemStatus

	LegalID  string
	PartyID  string
	Metadata InvoiceMetadata
}

func NewItem(filename string, content []byte) Item {
	return Item{
		Filename: filename,
		Content:  content,
		Type:     TypeUnknown,
		Status:   StatusUnhandled,
	}
}

// WithStatus advances the item to the given status. Terminal statuses stick:
// advancing a terminal item returns it unchanged.
func (i Item) WithStatus(status ItemStatus) Item {
	if i.Status.IsTerminal() {
		return i
	}
	i.Status = status
	return i
}

func (i Item) WithType(t ItemType) Item {
	i.Type = t
	return i
}

func (i Item) WithLegalID(legalID string) Item {
	i.LegalID = legalID
	return i
}

func (i Item) WithPartyID(partyID string) Item {
	i.PartyID = partyID
	return i
}

func (i Item) WithMetadata(md InvoiceMetadata) Item {
	i.Metadata = md
	return i
}

func (i Item) IsInvoice() bool     { return i.Type == TypeInvoice }
func (i Item) IsProcessable() bool { return i.Status.IsProcessable() }
func (i Item) IsSent() bool        { return i.Status == StatusSent }
func (i Item) IsIgnored() bool     { return i.Status == StatusIgnored }

// IsUnsent reports whether the item is an invoice that did not get delivered.
// Unsent invoices stay in the repacked archive for manual handling.
func (i Item) IsUnsent() bool {
	return i.IsInvoice() && i.Status != StatusSent
}

package tracekit

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// TimestampLayout is the ISO-8601 form used for timestamp query parameters.
// Timestamps are converted to UTC first, so the offset is always "+00:00".
const TimestampLayout = "2006-01-02T15:04:05.999999999-07:00"

// OrderField is a field the listing can be sorted by.
type OrderField string

const (
	OrderByID         OrderField = "id"
	OrderByTimestamp  OrderField = "timestamp"
	OrderByName       OrderField = "name"
	OrderByUserID     OrderField = "userId"
	OrderByRelease    OrderField = "release"
	OrderByVersion    OrderField = "version"
	OrderByPublic     OrderField = "public"
	OrderByBookmarked OrderField = "bookmarked"
	OrderBySessionID  OrderField = "sessionId"
)

var orderFields = []OrderField{
	OrderByID, OrderByTimestamp, OrderByName, OrderByUserID, OrderByRelease,
	OrderByVersion, OrderByPublic, OrderByBookmarked, OrderBySessionID,
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// OrderBy is a sort order rendered as "field.direction".
type OrderBy struct {
	Field     OrderField
	Direction Direction
}

// ParseOrderBy parses "field.direction", e.g. "timestamp.desc".
func ParseOrderBy(s string) (*OrderBy, error) {
	field, dir, ok := strings.Cut(s, ".")
	if !ok {
		return nil, goerr.Wrap(ErrInvalidParameter, "order by must be field.direction", goerr.V("order_by", s))
	}
	o := &OrderBy{Field: OrderField(field), Direction: Direction(dir)}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// Validate checks the field and direction against the supported sets.
func (o OrderBy) Validate() error {
	if !slices.Contains(orderFields, o.Field) {
		return goerr.Wrap(ErrInvalidParameter, "unsupported order by field", goerr.V("field", o.Field))
	}
	if o.Direction != Asc && o.Direction != Desc {
		return goerr.Wrap(ErrInvalidParameter, "unsupported order by direction", goerr.V("direction", o.Direction))
	}
	return nil
}

func (o OrderBy) String() string {
	return string(o.Field) + "." + string(o.Direction)
}

// ListFilters narrows a trace listing. Every field is optional and its zero
// value means "not set": unset fields are left out of the query entirely.
type ListFilters struct {
	// Page number, starting at 1.
	Page int
	// Limit of items per page.
	Limit int

	UserID    string
	Name      string
	SessionID string

	// FromTimestamp includes traces at or after this instant.
	FromTimestamp time.Time
	// ToTimestamp includes traces strictly before this instant.
	ToTimestamp time.Time

	OrderBy *OrderBy

	// Tags returns only traces having all of these tags.
	Tags []string

	Version string
	Release string
}

// Validate rejects values the server would never accept.
func (f ListFilters) Validate() error {
	if f.Page < 0 {
		return goerr.Wrap(ErrInvalidParameter, "page must be positive", goerr.V("page", f.Page))
	}
	if f.Limit < 0 {
		return goerr.Wrap(ErrInvalidParameter, "limit must be positive", goerr.V("limit", f.Limit))
	}
	if f.OrderBy != nil {
		if err := f.OrderBy.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Query encodes the set fields as query parameters. Multiple tags are sent
// as a repeated "tags" parameter.
func (f ListFilters) Query() url.Values {
	q := url.Values{}

	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	setString(q, "userId", f.UserID)
	setString(q, "name", f.Name)
	setString(q, "sessionId", f.SessionID)
	if !f.FromTimestamp.IsZero() {
		q.Set("fromTimestamp", FormatTimestamp(f.FromTimestamp))
	}
	if !f.ToTimestamp.IsZero() {
		q.Set("toTimestamp", FormatTimestamp(f.ToTimestamp))
	}
	if f.OrderBy != nil {
		q.Set("orderBy", f.OrderBy.String())
	}
	for _, tag := range f.Tags {
		q.Add("tags", tag)
	}
	setString(q, "version", f.Version)
	setString(q, "release", f.Release)

	return q
}

func setString(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

// FormatTimestamp renders t in UTC as ISO-8601 with an explicit offset,
// e.g. "2024-01-15T09:30:00+00:00".
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

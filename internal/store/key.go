package store

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// DateLayout is the UTC calendar-day component of every dated document path.
const DateLayout = "2006-01-02"

const latestName = "latest"

// ErrEmptyKey is returned when a key lacks the components needed to build a path.
var ErrEmptyKey = errors.New("store: empty key")

// Key identifies one capped document. Market documents carry a symbol and a
// data kind; news and sentiment documents are keyed by collection and date only.
type Key struct {
	Collection string
	Date       string
	Symbol     string
	Kind       string
}

// MarketKey builds {collection}/{date}/{symbol}/{kind}.json.
func MarketKey(collection, symbol, kind string, at time.Time) Key {
	return Key{Collection: collection, Date: DateOf(at), Symbol: symbol, Kind: kind}
}

// DailyKey builds {collection}/{date}.json.
func DailyKey(collection string, at time.Time) Key {
	return Key{Collection: collection, Date: DateOf(at)}
}

func DateOf(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Path returns the slash separated path of the document relative to the
// store root.
func (k Key) Path() (string, error) {
	if k.Collection == "" || k.Date == "" {
		return "", ErrEmptyKey
	}
	if (k.Symbol == "") != (k.Kind == "") {
		return "", fmt.Errorf("%w: symbol and kind must be set together", ErrEmptyKey)
	}
	for _, part := range []string{k.Collection, k.Date, k.Symbol, k.Kind} {
		if err := checkComponent(part); err != nil {
			return "", err
		}
	}
	if k.Symbol == "" {
		return path.Join(k.Collection, k.Date+".json"), nil
	}
	return path.Join(k.Collection, k.Date, k.Symbol, k.Kind+".json"), nil
}

func (k Key) String() string {
	p, err := k.Path()
	if err != nil {
		return fmt.Sprintf("invalid(%s/%s/%s/%s)", k.Collection, k.Date, k.Symbol, k.Kind)
	}
	return p
}

func latestPath(collection string) (string, error) {
	if collection == "" {
		return "", ErrEmptyKey
	}
	if err := checkComponent(collection); err != nil {
		return "", err
	}
	return path.Join(collection, latestName+".json"), nil
}

func checkComponent(part string) error {
	if part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
		return fmt.Errorf("store: invalid key component %q", part)
	}
	return nil
}

package models

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidLocation is returned when a location does not name a container and an object.
var ErrInvalidLocation = errors.New("location must end in <container>/<name>")

// ParseDocumentURL derives a DocumentReference from the last two path
// segments of a storage location, e.g.
// http://localhost:10000/devstoreaccount1/documents/report.pdf -> documents/report.pdf
func ParseDocumentURL(location string) (DocumentReference, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return DocumentReference{}, ErrInvalidLocation
	}

	u, err := url.Parse(location)
	if err != nil {
		return DocumentReference{}, fmt.Errorf("parse %q: %w", location, err)
	}

	var segments []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) < 2 {
		return DocumentReference{}, fmt.Errorf("%w: %q", ErrInvalidLocation, location)
	}

	return DocumentReference{
		Container: segments[len(segments)-2],
		Name:      segments[len(segments)-1],
	}, nil
}

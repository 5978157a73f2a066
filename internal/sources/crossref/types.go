// Package crossref provides a client for the Crossref REST API.
//
// Crossref is the DOI registration agency for scholarly publishing and the
// authoritative lookup for DOI-bearing citations. This package implements
// the sources.Source interface.
//
// API documentation: https://api.crossref.org/swagger-ui/index.html
package crossref

// WorksResponse is the envelope returned by the /works search endpoint.
type WorksResponse struct {
	Status  string       `json:"status"`
	Message WorksMessage `json:"message"`
}

// WorksMessage holds the search result list and total count.
type WorksMessage struct {
	TotalResults int    `json:"total-results"`
	Items        []Work `json:"items"`
}

// WorkResponse is the envelope returned by the /works/{doi} lookup endpoint.
type WorkResponse struct {
	Status  string `json:"status"`
	Message Work   `json:"message"`
}

// Work is a single Crossref work record. Titles and container titles are
// arrays in the wire format; only the first element is meaningful.
type Work struct {
	DOI            string      `json:"DOI"`
	Title          []string    `json:"title"`
	ContainerTitle []string    `json:"container-title"`
	Author         []Author    `json:"author"`
	Issued         DateParts   `json:"issued"`
	Page           string      `json:"page"`
	Volume         string      `json:"volume"`
	Issue          string      `json:"issue"`
	URL            string      `json:"URL"`
	Abstract       string      `json:"abstract"`
	ReferencedBy   int         `json:"is-referenced-by-count"`
	License        []License   `json:"license"`
	Type           string      `json:"type"`
}

// Author is a Crossref contributor entry.
type Author struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	Name   string `json:"name"`
}

// DateParts encodes Crossref's nested date representation:
// [[year, month, day]], with month and day optional.
type DateParts struct {
	DateParts [][]int `json:"date-parts"`
}

// Year returns the year component, or 0 when absent.
func (d DateParts) Year() int {
	if len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return 0
	}
	return d.DateParts[0][0]
}

// License is a license entry attached to a work.
type License struct {
	URL string `json:"URL"`
}

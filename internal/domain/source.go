package domain

// Source labels where an article was scraped from. The storage layer accepts
// any label; the scraped sites are the constants below.
type Source string

const (
	SourceTechCrunch Source = "TechCrunch"
	SourceFranceInfo Source = "France Info"
)

func (s Source) String() string { return string(s) }

package page

// LocalBusiness is the schema.org structured-data block attached to each page.
// Contact, geo and rating values are fixed placeholders.
type LocalBusiness struct {
	Context         string          `json:"@context"`
	Type            string          `json:"@type"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	URL             string          `json:"url,omitempty"`
	Telephone       string          `json:"telephone"`
	PriceRange      string          `json:"priceRange"`
	Image           string          `json:"image,omitempty"`
	AreaServed      string          `json:"areaServed,omitempty"`
	Address         PostalAddress   `json:"address"`
	Geo             GeoCoordinates  `json:"geo"`
	OpeningHours    string          `json:"openingHours"`
	AggregateRating AggregateRating `json:"aggregateRating"`
}

type PostalAddress struct {
	Type            string `json:"@type"`
	StreetAddress   string `json:"streetAddress"`
	AddressLocality string `json:"addressLocality"`
	AddressRegion   string `json:"addressRegion"`
	PostalCode      string `json:"postalCode"`
	AddressCountry  string `json:"addressCountry"`
}

type GeoCoordinates struct {
	Type      string `json:"@type"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

type AggregateRating struct {
	Type        string `json:"@type"`
	RatingValue string `json:"ratingValue"`
	ReviewCount string `json:"reviewCount"`
	BestRating  string `json:"bestRating"`
}

func newLocalBusiness(name, description, url, image, location string) *LocalBusiness {
	return &LocalBusiness{
		Context:     "https://schema.org",
		Type:        "LocalBusiness",
		Name:        name,
		Description: description,
		URL:         url,
		Image:       image,
		Telephone:   "+1-555-010-0100",
		PriceRange:  "$$",
		AreaServed:  location,
		Address: PostalAddress{
			Type:            "PostalAddress",
			StreetAddress:   "123 Main Street",
			AddressLocality: location,
			AddressRegion:   "",
			PostalCode:      "00000",
			AddressCountry:  "US",
		},
		Geo: GeoCoordinates{
			Type:      "GeoCoordinates",
			Latitude:  "0.0000",
			Longitude: "0.0000",
		},
		OpeningHours: "Mo-Su 00:00-23:59",
		AggregateRating: AggregateRating{
			Type:        "AggregateRating",
			RatingValue: "4.8",
			ReviewCount: "127",
			BestRating:  "5",
		},
	}
}

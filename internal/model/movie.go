package model

import "time"

type MovieInfo struct {
	OriginCountry              string   `json:"origin_country"`
	OriginalTitle              string   `json:"original_title"`
	OriginCountryCertification string   `json:"origin_country_certification"`
	ProductionCompanies        []string `json:"production_companies"`
	Director                   string   `json:"director"`
}

type Movie struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	ReleaseYear    int        `json:"release_year"`
	Duration       int        `json:"duration"`
	Synopsis       string     `json:"synopsis"`
	AgeRating      string     `json:"age_rating"`
	Genres         []string   `json:"genres"`
	Actors         []string   `json:"actors"`
	Warnings       string     `json:"warnings"`
	AdditionalInfo *MovieInfo `json:"additional_info,omitempty"`
	ImageKey       *string    `json:"image_key,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

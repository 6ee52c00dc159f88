package models

// Stats is the aggregate dashboard payload.
type Stats struct {
	Overview      Overview     `json:"overview"`
	CardsByType   []TypeCount  `json:"cardsByType"`
	CardsBySide   []SideCount  `json:"cardsBySide"`
	CardsOverTime []DateCount  `json:"cardsOverTime"`
	Organizations SectionStats `json:"organizations"`
	People        SectionStats `json:"people"`
}

// Overview holds global totals.
type Overview struct {
	TotalCards    int `json:"totalCards"`
	TotalVotes    int `json:"totalVotes"`
	TotalDisputes int `json:"totalDisputes"`
	TotalLikes    int `json:"totalLikes"`
	TotalDislikes int `json:"totalDislikes"`
}

type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type SideCount struct {
	Side  string `json:"side"`
	Count int    `json:"count"`
}

type DateCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type IndustryCount struct {
	Industry string `json:"industry"`
	Count    int    `json:"count"`
}

type CountryCount struct {
	Country string `json:"country"`
	Count   int    `json:"count"`
}

// RankedCard is a leaderboard entry. Industry doubles as the person's field.
type RankedCard struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Count    int     `json:"count"`
	Industry *string `json:"industry"`
}

// SectionStats breaks down one card type.
type SectionStats struct {
	Total         int             `json:"total"`
	BySide        []SideCount     `json:"bySide"`
	TopIndustries []IndustryCount `json:"topIndustries"`
	TopCountries  []CountryCount  `json:"topCountries"`
	MostLiked     []RankedCard    `json:"mostLiked"`
	MostDisliked  []RankedCard    `json:"mostDisliked"`
}

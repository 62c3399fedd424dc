package model

import "time"

// Student запись справочника студентов
type Student struct {
	ID        int64  `json:"id"`
	Course    int    `json:"course"`
	SpaceID   int64  `json:"spaceID"`
	FullName  string `json:"fullName"`
	ShortName string `json:"shortName"`
}

// Directory снимок справочника студентов
type Directory struct {
	Students  []Student `json:"list"`
	UpdatedAt time.Time `json:"timestamp"`
}

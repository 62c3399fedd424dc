package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAuthArgs(t *testing.T) {
	tests := []struct {
		text     string
		user     string
		password string
		ok       bool
	}{
		{"/auth student@edu.ru secret", "student@edu.ru", "secret", true},
		{"/auth   student@edu.ru    secret  ", "student@edu.ru", "secret", true},
		{"/auth student@edu.ru", "", "", false},
		{"/auth", "", "", false},
		{"/auth a b c", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			user, password, ok := ParseAuthArgs(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.user, user)
			assert.Equal(t, tt.password, password)
		})
	}
}

func TestParseStudentArgs(t *testing.T) {
	tests := []struct {
		text  string
		query string
		id    int64
	}{
		{"/student 12345", "", 12345},
		{"/student   77 ", "", 77},
		{"/student Иванов Иван", "Иванов Иван", 0},
		{"/student", "", 0},
		{"/student -5", "-5", 0},
		{"/student 0", "0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			query, id := ParseStudentArgs(tt.text)
			assert.Equal(t, tt.query, query)
			assert.Equal(t, tt.id, id)
		})
	}
}

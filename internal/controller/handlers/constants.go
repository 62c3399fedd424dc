package handlers

const (
	// Сколько студентов показывать в результатах поиска
	StudentSearchLimit = 10

	// Минимальная длина запроса поиска студента
	StudentQueryMinLength = 3
)

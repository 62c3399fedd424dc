package rasp

import "github.com/Freeeeeet/rasp_bot/internal/format"

// Ответы upstream. Схема меняется без предупреждения, поэтому
// все поля необязательные, а неизвестные игнорируются.

type tokenAuthRequest struct {
	IsParent       bool    `json:"isParent"`
	RecaptchaToken *string `json:"recaptchaToken"`
	UserName       string  `json:"userName"`
	Password       string  `json:"password"`
}

type tokenAuthResponse struct {
	Data struct {
		AccessToken string `json:"accessToken"`
		Data        struct {
			AccessToken string `json:"accessToken"`
			ID          int64  `json:"id"`
		} `json:"data"`
	} `json:"data"`
	State int    `json:"state"`
	Msg   string `json:"msg"`
}

type sessionResponse struct {
	State int `json:"state"`
}

type userInfoResponse struct {
	Data struct {
		EliteEducationID int64 `json:"eliteEducationID"`
	} `json:"data"`
}

type raspListResponse struct {
	Data struct {
		RaspList []format.Entry `json:"raspList"`
	} `json:"data"`
}

type reserveResponse struct {
	Data struct {
		Rasp []format.ReserveEntry `json:"rasp"`
	} `json:"data"`
}

type lessonTypesResponse struct {
	Data struct {
		LessonsTypes []format.LessonType `json:"lessonsTypes"`
	} `json:"data"`
}

type studentListResponse struct {
	Data struct {
		AllStudent []struct {
			StudentID int64  `json:"studentID"`
			FullName  string `json:"fullName"`
			Fio       string `json:"fio"`
			Course    int    `json:"course"`
		} `json:"allStudent"`
	} `json:"data"`
}

// Account результат проверки логина и пароля нового пользователя
type Account struct {
	AccessToken string
	StudentID   int64
	SpaceID     int64
}

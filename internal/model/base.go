package model

import "github.com/google/uuid"

// ensureID проставляет UUID на стороне приложения: одна и та же схема работает
// и в Postgres, и в SQLite, без gen_random_uuid().
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

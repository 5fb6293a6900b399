package domain

import "github.com/google/uuid"

type UserID = uuid.UUID
type RoomID = uuid.UUID
type MessageID = uuid.UUID

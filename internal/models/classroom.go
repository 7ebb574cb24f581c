package models

import "time"

// RoomType categorizes what kind of sessions a classroom can host.
type RoomType string

const (
	RoomTypeLecture     RoomType = "LECTURE"
	RoomTypeLaboratory  RoomType = "LABORATORY"
	RoomTypeComputerLab RoomType = "COMPUTER_LAB"
	RoomTypeConference  RoomType = "CONFERENCE"
	RoomTypeOther       RoomType = "OTHER"
)

// RoomStatus represents whether a classroom can be scheduled.
type RoomStatus string

const (
	RoomStatusAvailable   RoomStatus = "AVAILABLE"
	RoomStatusMaintenance RoomStatus = "MAINTENANCE"
	RoomStatusReserved    RoomStatus = "RESERVED"
)

// Classroom represents a schedulable room.
type Classroom struct {
	ID        string     `db:"id" json:"id"`
	Code      string     `db:"code" json:"code"`
	Name      string     `db:"name" json:"name"`
	Building  *string    `db:"building" json:"building,omitempty"`
	Capacity  int        `db:"capacity" json:"capacity"`
	Type      RoomType   `db:"type" json:"type"`
	Status    RoomStatus `db:"status" json:"status"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// ClassroomFilter captures supported filters for listing classrooms.
type ClassroomFilter struct {
	Type        RoomType
	Status      RoomStatus
	MinCapacity int
	Search      string
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}

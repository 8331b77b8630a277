package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Image target sizes applied by the resize worker after a save with a
// freshly attached image.
const (
	CourseImageWidth  = 666
	CourseImageHeight = 430

	InstructorImageWidth  = 67
	InstructorImageHeight = 67
)

type Course struct {
	bun.BaseModel `bun:"table:courses"`

	CourseID    string    `bun:"course_id,pk" json:"course_id"`
	Name        string    `bun:"name,notnull" json:"name"`
	Slug        string    `bun:"slug,unique,notnull" json:"slug"`
	Price       int64     `bun:"price,notnull" json:"price"`
	Country     string    `bun:"country" json:"country"`
	Address     string    `bun:"address" json:"address"`
	MapRef      string    `bun:"map_ref" json:"map_ref"`
	Image       string    `bun:"image" json:"image"`
	Description string    `bun:"description" json:"description"`
	PaymentInfo string    `bun:"payment_info" json:"payment_info"`
	Active      bool      `bun:"active" json:"active"`
	Version     int       `bun:"version,notnull,default:1" json:"version"`
	MailingList string    `bun:"mailing_list" json:"mailing_list,omitempty"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
}

type CourseDay struct {
	bun.BaseModel `bun:"table:course_days"`

	DayID    string    `bun:"day_id,pk" json:"day_id"`
	CourseID string    `bun:"course_id,notnull" json:"course_id"`
	Date     time.Time `bun:"date,notnull" json:"date"`
	Topic    string    `bun:"topic" json:"topic"`
	Agenda   string    `bun:"agenda" json:"agenda"`
}

type Instructor struct {
	bun.BaseModel `bun:"table:instructors"`

	InstructorID string `bun:"instructor_id,pk" json:"instructor_id"`
	Name         string `bun:"name,notnull" json:"name"`
	Twitter      string `bun:"twitter" json:"twitter"`
	Bio          string `bun:"bio" json:"bio"`
	Image        string `bun:"image" json:"image"`
}

// CourseInstructor is the join row for the Course<->Instructor M2M relation.
type CourseInstructor struct {
	bun.BaseModel `bun:"table:course_instructors"`

	CourseID     string `bun:"course_id,pk"`
	InstructorID string `bun:"instructor_id,pk"`
}

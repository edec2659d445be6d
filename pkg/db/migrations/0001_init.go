package migrations

import (
	"context"
	"database/sql"
	"embed"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// FS exposes the migration sources so goose can discover them by version.
//
//go:embed *.go
var FS embed.FS

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

type Teacher struct {
	ID           int64      `gorm:"type:bigserial;primaryKey"`
	Username     string     `gorm:"type:text;uniqueIndex;not null"`
	Email        string     `gorm:"type:text;uniqueIndex;not null"`
	PasswordHash string     `gorm:"type:text;not null"`
	FullName     string     `gorm:"type:text;not null"`
	Role         string     `gorm:"type:text;not null;default:'teacher'"`
	LastLogin    *time.Time `gorm:"type:timestamptz"`
	CreatedAt    time.Time  `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

type Session struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	TeacherID int64     `gorm:"not null;index"`
	ExpiresAt time.Time `gorm:"type:timestamptz;not null;index"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	Teacher   Teacher   `gorm:"foreignKey:TeacherID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type Student struct {
	SrNo      int64     `gorm:"column:sr_no;type:bigserial;primaryKey"`
	RollNo    string    `gorm:"type:text;not null"`
	Name      string    `gorm:"type:text;not null"`
	Division  string    `gorm:"type:text;not null;index"`
	Email     string    `gorm:"type:text;not null;default:''"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

type Attendance struct {
	ID            int64          `gorm:"type:bigserial;primaryKey"`
	Date          datatypes.Date `gorm:"not null;uniqueIndex:attendance_day_student"`
	Division      string         `gorm:"type:text;not null;uniqueIndex:attendance_day_student"`
	StudentID     int64          `gorm:"not null;uniqueIndex:attendance_day_student"`
	TeacherID     int64          `gorm:"not null;uniqueIndex:attendance_day_student;index"`
	Status        string         `gorm:"type:text;not null"`
	ProfessorName string         `gorm:"type:text;not null;default:''"`
	CreatedAt     time.Time      `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	Student       Student        `gorm:"foreignKey:StudentID;references:SrNo;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Teacher       Teacher        `gorm:"foreignKey:TeacherID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (Attendance) TableName() string { return "attendance" }

func openTx(tx *sql.Tx) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
}

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openTx(tx)
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).AutoMigrate(
		&Teacher{},
		&Session{},
		&Student{},
		&Attendance{},
	)
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openTx(tx)
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().DropTable(
		&Attendance{},
		&Student{},
		&Session{},
		&Teacher{},
	)
}

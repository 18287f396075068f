package models

import (
	"reflect"
	"strings"
	"testing"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertFieldType checks that a struct field has the expected Go type.
func assertFieldType(t *testing.T, typ reflect.Type, fieldName, expectedType string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	if got := f.Type.String(); got != expectedType {
		t.Errorf("%s.%s type = %q, want %q", typ.Name(), fieldName, got, expectedType)
	}
}

func TestPlatform_Fields(t *testing.T) {
	typ := reflect.TypeOf(Platform{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertFieldType(t, typ, "ID", "int64")
	assertGormTag(t, typ, "Name", "uniqueIndex")
	assertGormTag(t, typ, "PublicKey", "type:text")
	assertFieldType(t, typ, "ForceTagID", "*uint")
}

func TestInterfaceToken_Fields(t *testing.T) {
	typ := reflect.TypeOf(InterfaceToken{})

	assertGormTag(t, typ, "Token", "primaryKey")
	assertGormTag(t, typ, "ExpirationTime", "index")
	assertFieldType(t, typ, "ExpirationTime", "time.Time")
}

func TestQueueEntry_Fields(t *testing.T) {
	typ := reflect.TypeOf(QueueEntry{})

	assertGormTag(t, typ, "ID", "autoIncrement")
	assertGormTag(t, typ, "ReceivedFrom", "not null")
	assertFieldType(t, typ, "ReceivedFrom", "int64")
	assertGormTag(t, typ, "JobData", "type:text")
	assertGormTag(t, typ, "Priority", "index")
}

func TestJobType_CompositeKey(t *testing.T) {
	typ := reflect.TypeOf(JobType{})

	assertGormTag(t, typ, "JobID", "primaryKey")
	assertGormTag(t, typ, "TypeID", "primaryKey")
	assertGormTag(t, typ, "JobID", "autoIncrement:false")
}

func TestDoneEntry_Fields(t *testing.T) {
	typ := reflect.TypeOf(DoneEntry{})

	assertGormTag(t, typ, "JobID", "primaryKey")
	assertGormTag(t, typ, "ReceivedFrom", "index")
	assertGormTag(t, typ, "ResultData", "type:text")
}

func TestCatalog_Fields(t *testing.T) {
	assertGormTag(t, reflect.TypeOf(Tag{}), "Name", "uniqueIndex")
	assertGormTag(t, reflect.TypeOf(ServerType{}), "Name", "uniqueIndex")
	assertGormTag(t, reflect.TypeOf(TypeTag{}), "TypeID", "primaryKey")
	assertGormTag(t, reflect.TypeOf(TypeTag{}), "TagID", "primaryKey")
}

func TestServer_Fields(t *testing.T) {
	typ := reflect.TypeOf(Server{})

	assertGormTag(t, typ, "Name", "uniqueIndex")
	assertGormTag(t, typ, "TypeID", "index")
	assertFieldType(t, typ, "CurrentJobID", "*uint")
	assertFieldType(t, typ, "LastPollTime", "*time.Time")
}

func TestTableNames(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"InterfaceToken", InterfaceToken{}.TableName(), "tokens"},
		{"QueueEntry", QueueEntry{}.TableName(), "queue"},
		{"DoneEntry", DoneEntry{}.TableName(), "done"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s.TableName() = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

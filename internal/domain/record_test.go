package domain

import (
	"errors"
	"testing"
)

func TestParseAffiliationFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    AffiliationType
		wantErr bool
	}{
		{name: "express lower", input: "express", want: AffiliationExpress},
		{name: "junior mixed case", input: " Junior ", want: AffiliationJunior},
		{name: "unknown", input: "premium", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseAffiliationFromString(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseAffiliationFromString() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAffiliationFromString() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseAffiliationFromString() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAffiliationURLs(t *testing.T) {
	t.Parallel()

	if got := AffiliationExpress.URL(); got != "https://www.joinmarriottbonvoy.com/calaqr/s/ES/ch/cunxc" {
		t.Fatalf("express url = %q", got)
	}
	if got := AffiliationJunior.URL(); got != "https://www.joinmarriottbonvoy.com/calaqr/s/ES/ch/cunjc" {
		t.Fatalf("junior url = %q", got)
	}
}

func TestRecordValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		record  Record
		wantErr bool
	}{
		{
			name:   "valid",
			record: Record{FullName: "Maria Lopez", Email: "maria@gmail.com"},
		},
		{
			name:    "single token name",
			record:  Record{FullName: "Maria", Email: "maria@gmail.com"},
			wantErr: true,
		},
		{
			name:    "empty name",
			record:  Record{FullName: "  ", Email: "maria@gmail.com"},
			wantErr: true,
		},
		{
			name:    "email without at",
			record:  Record{FullName: "Maria Lopez", Email: "maria.gmail.com"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.record.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
		})
	}
}

func TestRecordSplitName(t *testing.T) {
	t.Parallel()

	r := Record{FullName: "Maria de la Cruz"}
	given, family := r.SplitName()
	if given != "Maria" {
		t.Fatalf("given = %q, want Maria", given)
	}
	if family != "de la Cruz" {
		t.Fatalf("family = %q, want 'de la Cruz'", family)
	}
}

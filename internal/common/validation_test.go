package common

import (
	"strings"
	"testing"
)

func TestValidateOutputFormat(t *testing.T) {
	formats := []string{"json", "text", "markdown"}

	t.Run("accepts every configured format", func(t *testing.T) {
		for _, format := range formats {
			if err := ValidateOutputFormat(format, formats); err != nil {
				t.Errorf("ValidateOutputFormat(%q) = %v, want nil", format, err)
			}
		}
	})

	t.Run("rejects unknown formats", func(t *testing.T) {
		for _, format := range []string{"xml", "yaml", "csv", ""} {
			err := ValidateOutputFormat(format, formats)
			if err == nil {
				t.Errorf("ValidateOutputFormat(%q) = nil, want error", format)
				continue
			}
			if !strings.Contains(err.Error(), "unsupported output format") {
				t.Errorf("unexpected error message: %v", err)
			}
			if !strings.Contains(err.Error(), "json, text, markdown") {
				t.Errorf("error should list the supported formats, got: %v", err)
			}
		}
	})

	t.Run("matching is case-sensitive", func(t *testing.T) {
		if err := ValidateOutputFormat("JSON", formats); err == nil {
			t.Error("ValidateOutputFormat(\"JSON\") = nil, want error")
		}
	})

	t.Run("empty format list accepts anything", func(t *testing.T) {
		if err := ValidateOutputFormat("xml", nil); err != nil {
			t.Errorf("ValidateOutputFormat with no restriction = %v, want nil", err)
		}
	})

	t.Run("single configured format", func(t *testing.T) {
		only := []string{"json"}
		if err := ValidateOutputFormat("json", only); err != nil {
			t.Errorf("ValidateOutputFormat(\"json\") = %v, want nil", err)
		}
		if err := ValidateOutputFormat("text", only); err == nil {
			t.Error("ValidateOutputFormat(\"text\") = nil, want error")
		}
	})
}

func BenchmarkValidateOutputFormat(b *testing.B) {
	formats := []string{"json", "text", "markdown"}

	b.Run("hit", func(b *testing.B) {
		for b.Loop() {
			_ = ValidateOutputFormat("markdown", formats)
		}
	})

	b.Run("miss", func(b *testing.B) {
		for b.Loop() {
			_ = ValidateOutputFormat("xml", formats)
		}
	})
}

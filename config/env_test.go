package config

import (
	"testing"
	"time"
)

func TestTypedGetters(t *testing.T) {
	t.Setenv("FQ_INT", "42")
	t.Setenv("FQ_BAD_INT", "forty")
	t.Setenv("FQ_FLOAT", "0.25")
	t.Setenv("FQ_DUR", "250ms")
	t.Setenv("FQ_NEG_DUR", "-1s")

	if got := Int("FQ_INT", 1); got != 42 {
		t.Errorf("Int = %d, want 42", got)
	}
	if got := Int("FQ_BAD_INT", 7); got != 7 {
		t.Errorf("Int(bad) = %d, want default 7", got)
	}
	if got := Float("FQ_FLOAT", 1); got != 0.25 {
		t.Errorf("Float = %v, want 0.25", got)
	}
	if got := Duration("FQ_DUR", time.Second); got != 250*time.Millisecond {
		t.Errorf("Duration = %v, want 250ms", got)
	}
	if got := Duration("FQ_NEG_DUR", time.Second); got != time.Second {
		t.Errorf("Duration(negative) = %v, want default", got)
	}
	if got := String("FQ_UNSET", "fallback"); got != "fallback" {
		t.Errorf("String = %q, want fallback", got)
	}
}

func TestGetAllowedOrigins(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", " http://a.test , ,http://b.test")
	got := GetAllowedOrigins()
	if len(got) != 2 || got[0] != "http://a.test" || got[1] != "http://b.test" {
		t.Errorf("GetAllowedOrigins() = %v", got)
	}
}

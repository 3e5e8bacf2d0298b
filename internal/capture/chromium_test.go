package capture

import (
	"context"
	"testing"
	"time"
)

func TestOptionsDefaults(t *testing.T) {
	t.Parallel()
	o, err := Options{URL: "http://127.0.0.1:8080/timeline", OutputPath: "out.png"}.withDefaults()
	if err != nil {
		t.Fatal(err)
	}
	if o.Width != DefaultWidth || o.Height != DefaultHeight || o.Timeout != DefaultTimeout {
		t.Fatalf("defaults = %+v", o)
	}

	o, err = Options{URL: "u", OutputPath: "p", Width: 800, Height: 600, Timeout: time.Second}.withDefaults()
	if err != nil || o.Width != 800 || o.Height != 600 || o.Timeout != time.Second {
		t.Fatalf("explicit options changed: %+v, %v", o, err)
	}
}

func TestCaptureRequiresURLAndOutput(t *testing.T) {
	t.Parallel()
	tests := []Options{
		{OutputPath: "out.png"},
		{URL: "http://127.0.0.1/timeline"},
	}
	for _, o := range tests {
		if err := CaptureTimelinePNG(context.Background(), o); err == nil {
			t.Errorf("CaptureTimelinePNG(%+v) succeeded", o)
		}
	}
}

package ops

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/hpungsan/cardbot/internal/ticket"
)

const zightPage = `<html><body><img data-testid="viewer-content-image" src="https://cdn.zight.com/full.png"></body></html>`

type fakeFetcher struct {
	html  string
	err   error
	calls int
}

func (f *fakeFetcher) FetchPage(context.Context, string) (string, error) {
	f.calls++
	return f.html, f.err
}

func TestEnrich_Skipped(t *testing.T) {
	fetcher := &fakeFetcher{html: zightPage}
	fb := &fakeBoard{}

	for _, u := range []string{"", "   "} {
		out := Enrich(context.Background(), fetcher, fb, "card1", u)
		if out.Status != ticket.AttachSkipped {
			t.Errorf("Status = %q, want skipped", out.Status)
		}
	}
	if fetcher.calls != 0 || fb.attachCalls() != 0 {
		t.Errorf("fetch calls = %d, attach calls = %d; want 0, 0", fetcher.calls, fb.attachCalls())
	}
}

func TestEnrich_Attached(t *testing.T) {
	fb := &fakeBoard{}
	out := Enrich(context.Background(), &fakeFetcher{html: zightPage}, fb, "card1", "https://share.zight.com/abc")

	if out.Status != ticket.AttachAttached {
		t.Fatalf("Status = %q, want attached (reason %q)", out.Status, out.Reason)
	}
	if out.ImageURL != "https://cdn.zight.com/full.png" {
		t.Errorf("ImageURL = %q", out.ImageURL)
	}
	if fb.attachCalls() != 1 || fb.attachments[0] != "card1 https://cdn.zight.com/full.png Screenshot" {
		t.Errorf("attachments = %v", fb.attachments)
	}
}

func TestEnrich_NoImage(t *testing.T) {
	fb := &fakeBoard{}
	out := Enrich(context.Background(), &fakeFetcher{html: "<html><body>gone</body></html>"}, fb, "card1", "https://share.zight.com/abc")

	if out.Status != ticket.AttachFailed || out.Reason != "no image found" {
		t.Errorf("out = %+v, want failed/no image found", out)
	}
	if fb.attachCalls() != 0 {
		t.Errorf("attach calls = %d, want 0", fb.attachCalls())
	}
}

func TestEnrich_PageUnreachable(t *testing.T) {
	fb := &fakeBoard{}
	out := Enrich(context.Background(), &fakeFetcher{err: stderrors.New("dial tcp: timeout")}, fb, "card1", "https://share.zight.com/abc")

	if out.Status != ticket.AttachFailed || out.Reason != "sharing page unreachable" {
		t.Errorf("out = %+v, want failed/sharing page unreachable", out)
	}
	if out.Err == nil {
		t.Error("Err should carry the fetch failure")
	}
	if fb.attachCalls() != 0 {
		t.Errorf("attach calls = %d, want 0", fb.attachCalls())
	}
}

func TestEnrich_UploadFailed(t *testing.T) {
	fb := &fakeBoard{attachErr: stderrors.New("status 500")}
	out := Enrich(context.Background(), &fakeFetcher{html: zightPage}, fb, "card1", "https://share.zight.com/abc")

	if out.Status != ticket.AttachFailed || out.Reason != "upload failed" {
		t.Errorf("out = %+v, want failed/upload failed", out)
	}
	if out.ImageURL == "" {
		t.Error("ImageURL should still report the image that was found")
	}
}

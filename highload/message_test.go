package highload

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"testing"
	"time"

	"github.com/xssnick/tonutils-go/tvm/cell"
)

func TestBuildExternalBody_Layout(t *testing.T) {
	w := newTestWallet(t, nil)
	qid := testQID(t)

	payload := cell.BeginCell().MustStoreUInt(777, 27).EndCell()

	const createdAt = 1700000000
	const ttl = 180
	const mode = PayGasSeparately + IgnoreErrors

	body, err := w.BuildExternalBody(qid, createdAt, ttl, mode, payload)
	if err != nil {
		t.Fatal(err)
	}

	s := body.BeginParse()
	if got := s.MustLoadUInt(32); got != uint64(DefaultSubwallet) {
		t.Errorf("subwallet %d, want %d", got, DefaultSubwallet)
	}
	if got := s.MustLoadRef(); !bytes.Equal(got.MustToCell().Hash(), payload.Hash()) {
		t.Error("payload ref does not match")
	}
	if got := s.MustLoadUInt(8); got != mode {
		t.Errorf("mode %d, want %d", got, mode)
	}
	if got := s.MustLoadUInt(23); got != uint64(qid.Packed()) {
		t.Errorf("query id %d, want %d", got, qid.Packed())
	}
	if got := s.MustLoadUInt(64); got != createdAt {
		t.Errorf("created at %d, want %d", got, createdAt)
	}
	if got := s.MustLoadUInt(22); got != ttl {
		t.Errorf("ttl %d, want %d", got, ttl)
	}
	if s.BitsLeft() != 0 {
		t.Errorf("%d trailing bits in external body", s.BitsLeft())
	}
}

func TestBuildExternalBody_Defaults(t *testing.T) {
	timeNow = func() time.Time {
		return time.Unix(1000000, 0)
	}
	defer func() { timeNow = time.Now }()

	w := newTestWallet(t, nil)
	payload := cell.BeginCell().EndCell()

	body, err := w.BuildExternalBody(testQID(t), 0, 0, 0, payload)
	if err != nil {
		t.Fatal(err)
	}

	s := body.BeginParse()
	s.MustLoadUInt(32)
	s.MustLoadRef()
	s.MustLoadUInt(8)
	s.MustLoadUInt(23)

	if got := s.MustLoadUInt(64); got != 1000000 {
		t.Errorf("created at %d, want current time", got)
	}
	if got := s.MustLoadUInt(22); got != uint64(DefaultTimeout) {
		t.Errorf("ttl %d, want configured timeout %d", got, DefaultTimeout)
	}
}

func TestBuildExternalBody_TTLBounds(t *testing.T) {
	w := newTestWallet(t, nil)
	payload := cell.BeginCell().EndCell()

	for _, ttl := range []uint32{1, 5, 1 << 22, 1<<22 + 1} {
		if _, err := w.BuildExternalBody(testQID(t), 0, ttl, 0, payload); !errors.Is(err, ErrRange) {
			t.Errorf("ttl %d: got %v, want ErrRange", ttl, err)
		}
	}

	if _, err := w.BuildExternalBody(testQID(t), 0, 6, 0, payload); err != nil {
		t.Errorf("ttl 6: %v", err)
	}
	if _, err := w.BuildExternalBody(testQID(t), 0, 1<<22-1, 0, payload); err != nil {
		t.Errorf("ttl max: %v", err)
	}
}

func TestSignExternalBody_Deterministic(t *testing.T) {
	w := newTestWallet(t, nil)

	body, err := w.BuildExternalBody(testQID(t), 1700000000, 60, 0, cell.BeginCell().EndCell())
	if err != nil {
		t.Fatal(err)
	}

	first, err := w.SignExternalBody(context.Background(), body)
	if err != nil {
		t.Fatal(err)
	}
	second, err := w.SignExternalBody(context.Background(), body)
	if err != nil {
		t.Fatal(err)
	}

	sig := first.BeginParse().MustLoadSlice(512)
	if !bytes.Equal(sig, second.BeginParse().MustLoadSlice(512)) {
		t.Fatal("same body signed twice gave different signatures")
	}

	if !ed25519.Verify(testKey.Public().(ed25519.PublicKey), body.Hash(), sig) {
		t.Fatal("signature does not verify over the body hash")
	}

	inner := first.BeginParse()
	inner.MustLoadSlice(512)
	if !bytes.Equal(inner.MustLoadRef().MustToCell().Hash(), body.Hash()) {
		t.Fatal("envelope does not reference the signed body")
	}
}

func TestSignExternalBody_Errors(t *testing.T) {
	w := newTestWallet(t, nil)
	body := cell.BeginCell().EndCell()

	errSigner := errors.New("hsm is down")
	w.signer = func(context.Context, *cell.Cell) ([]byte, error) {
		return nil, errSigner
	}
	if _, err := w.SignExternalBody(context.Background(), body); !errors.Is(err, errSigner) {
		t.Fatalf("got %v, want signer error passed through", err)
	}

	w.signer = func(context.Context, *cell.Cell) ([]byte, error) {
		return []byte{1, 2, 3}, nil
	}
	if _, err := w.SignExternalBody(context.Background(), body); err == nil {
		t.Fatal("short signature accepted")
	}
}

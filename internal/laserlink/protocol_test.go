package laserlink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport records every frame written and serves queued replies.
type fakeTransport struct {
	written [][]byte
	replies [][]byte
}

func (f *fakeTransport) Write(data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	f.written = append(f.written, cp)
	return nil
}

func (f *fakeTransport) Read(buf []byte, _ time.Duration) (int, error) {
	if len(f.replies) == 0 {
		return 0, nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return copy(buf, r), nil
}

func TestSetOneTranslatesLogicalIndex(t *testing.T) {
	tr := &fakeTransport{}
	l := New(tr, []int{5, 6, 7})

	require.NoError(t, l.SetOne(1, 100, 3))
	assert.Equal(t, []byte{cmdSetOne, 6, 100, 3}, tr.written[0])
}

func TestSetOneAllAddressNotTranslated(t *testing.T) {
	tr := &fakeTransport{}
	l := New(tr, []int{5, 6, 7})

	require.NoError(t, l.SetOne(All, 50, 0))
	assert.Equal(t, []byte{cmdSetOne, All, 50, 0}, tr.written[0])
}

func TestSetAllFrame(t *testing.T) {
	tr := &fakeTransport{}
	l := New(tr, nil)
	require.NoError(t, l.SetAll(80, 5))
	assert.Equal(t, []byte{cmdSetAll, 80, 5, 0x00}, tr.written[0])
}

func TestStandbyFrame(t *testing.T) {
	tr := &fakeTransport{}
	l := New(tr, nil)
	require.NoError(t, l.Standby())
	assert.Equal(t, []byte{cmdStandby, 0x64, 0x05, 0x00}, tr.written[0])
}

func TestPlayAnimationFrame(t *testing.T) {
	tr := &fakeTransport{}
	l := New(tr, nil)
	require.NoError(t, l.PlayAnimation(3, 10, FollowFreeze))
	assert.Equal(t, []byte{cmdAnimation, 3, 10, byte(FollowFreeze)}, tr.written[0])
}

func TestReadReplyDecodesQueryResponse(t *testing.T) {
	tr := &fakeTransport{replies: [][]byte{{cmdQuery, 2, 64, 0x00}}}
	l := New(tr, nil)
	reply, err := l.ReadReply(time.Second)
	require.NoError(t, err)
	assert.Equal(t, Reply{Command: cmdQuery, A: 2, B: 64, C: 0}, reply)
}

func TestBrightnessStackPushPop(t *testing.T) {
	var s BrightnessStack
	s.Push(10, 0)
	s.Push(127, 5)

	b, f, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, 127, b)
	assert.Equal(t, 5, f)

	b, f, ok = s.Pop()
	require.True(t, ok)
	assert.Equal(t, 10, b)
	assert.Equal(t, 0, f)

	_, _, ok = s.Pop()
	assert.False(t, ok)
}

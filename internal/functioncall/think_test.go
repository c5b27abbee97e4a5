package functioncall

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripThinkBlocksSimple(t *testing.T) {
	in := "before <think>hidden</think> after"
	assert.Equal(t, "before  after", StripThinkBlocks(in))
}

func TestStripThinkBlocksNested(t *testing.T) {
	in := "a<think>outer <think>inner</think> still outer</think>b"
	assert.Equal(t, "ab", StripThinkBlocks(in))
}

func TestStripThinkBlocksUnclosedLeavesRestUnchanged(t *testing.T) {
	in := "a<think>never closes, trailing text stays put"
	assert.Equal(t, in, StripThinkBlocks(in))
}

func TestStripThinkBlocksUnclosedDoesNotAffectOtherTagTypes(t *testing.T) {
	// An unclosed <think> only freezes further scanning for "think" itself;
	// a separately-tagged, fully-closed <reasoning> block elsewhere in the
	// same text is still its own independent pass and is stripped.
	in := "a<think>never closes <reasoning>also inside</reasoning>"
	assert.Equal(t, "a<think>never closes ", StripThinkBlocks(in))
}

func TestStripThinkBlocksMultipleTagNames(t *testing.T) {
	in := "<analysis>a</analysis>mid<reasoning>b</reasoning>"
	assert.Equal(t, "mid", StripThinkBlocks(in))
}

func TestStripThinkBlocksCaseInsensitive(t *testing.T) {
	in := "x<THINK>hidden</THINK>y"
	assert.Equal(t, "xy", StripThinkBlocks(in))
}

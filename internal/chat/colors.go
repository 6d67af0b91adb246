package chat

import (
	"hash/fnv"

	"github.com/charmbracelet/lipgloss"
)

// bylineColor is a sender badge: background plus a readable foreground.
type bylineColor struct {
	bg lipgloss.Color
	fg lipgloss.Color
}

var (
	darkText  = lipgloss.Color("16")
	lightText = lipgloss.Color("231")
)

var senderPalette = []bylineColor{
	{bg: lipgloss.Color("111"), fg: darkText},
	{bg: lipgloss.Color("157"), fg: darkText},
	{bg: lipgloss.Color("216"), fg: darkText},
	{bg: lipgloss.Color("30"), fg: lightText},
	{bg: lipgloss.Color("183"), fg: darkText},
	{bg: lipgloss.Color("97"), fg: lightText},
	{bg: lipgloss.Color("229"), fg: darkText},
	{bg: lipgloss.Color("131"), fg: lightText},
}

var selfByline = bylineColor{bg: lipgloss.Color("75"), fg: darkText}

var (
	textColor     = lipgloss.Color("252")
	blurText      = lipgloss.Color("245")
	metaColor     = lipgloss.Color("242")
	errorColor    = lipgloss.Color("196")
	headerColor   = lipgloss.Color("231")
	headerBg      = lipgloss.Color("24")
	inputBg       = lipgloss.Color("235")
	caretColor    = lipgloss.Color("75")
	pillBg        = lipgloss.Color("236")
	pillSelfBg    = lipgloss.Color("24")
	reactionColor = lipgloss.Color("220")
)

// bylineFor picks a stable badge color from the user id.
func bylineFor(userID string) bylineColor {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return senderPalette[h.Sum32()%uint32(len(senderPalette))]
}

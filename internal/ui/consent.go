package ui

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

const consentText = `Whispr pairs you with a random stranger for an anonymous
one-on-one conversation. Nothing you type is stored by the service, but the
person on the other side is a real, unmoderated stranger.

You must be 18 or older to continue.`

// PromptConsent shows the terms box and asks for explicit agreement.
// Returns true only on an affirmative answer.
func PromptConsent() bool {
	fmt.Println(ConsentBoxStyle.Render(consentText))
	fmt.Printf("%s Do you agree and confirm you are 18+? [y/N] ", IconShield)

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

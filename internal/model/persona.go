package model

// Persona is the categorical label summarising a user's dominant behaviour.
type Persona string

// Persona labels
const (
	PersonaMoveMaximalist  Persona = "move_maximalist"
	PersonaDiamondHand     Persona = "diamond_hand"
	PersonaYieldArchitect  Persona = "yield_architect"
	PersonaJPEGMogul       Persona = "jpeg_mogul"
	PersonaEarlyBird       Persona = "early_bird"
	PersonaBalancedBuilder Persona = "balanced_builder"
)

// PersonaResult is the output of the persona scorer.
type PersonaResult struct {
	Persona    Persona `json:"persona"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// PersonaCopy is the display text for a persona card.
type PersonaCopy struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Emoji       string `json:"emoji"`
}

// PersonaCopies holds the display text for every persona.
var PersonaCopies = map[Persona]PersonaCopy{
	PersonaMoveMaximalist: {
		Title:       "The Move Maximalist",
		Description: "You live and breathe Sui. High transaction volume across multiple protocols makes you a true power user of the Move ecosystem.",
		Emoji:       "⚡",
	},
	PersonaDiamondHand: {
		Title:       "The Diamond Hand",
		Description: "HODL is your middle name. You've accumulated SUI and LSTs while barely touching the sell button. Conviction personified.",
		Emoji:       "💎",
	},
	PersonaYieldArchitect: {
		Title:       "The Yield Architect",
		Description: "Efficiency is your game. You've spent most of your time optimizing yields across lending pools and liquidity positions.",
		Emoji:       "🏗️",
	},
	PersonaJPEGMogul: {
		Title:       "The JPEG Mogul",
		Description: "Digital art and collectibles are your domain. Your Kiosk is a gallery, and you're not afraid to support creators with royalties.",
		Emoji:       "🖼️",
	},
	PersonaEarlyBird: {
		Title:       "The Early Bird",
		Description: "You saw the potential early. Joining Sui in its first months puts you among the OG believers of the ecosystem.",
		Emoji:       "🐦",
	},
	PersonaBalancedBuilder: {
		Title:       "The Balanced Builder",
		Description: "Jack of all trades, master of exploration. You've dipped your toes across the ecosystem without overcommitting to one area.",
		Emoji:       "🔨",
	},
}

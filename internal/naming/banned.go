package naming

// bannedWords are impersonation and phishing patterns around the chain's
// brand. A label containing any of them (case-insensitive) is rejected.
var bannedWords = []string{
	"pepeunchain", "pepeunchaned", "pepeunchanied", "pepuunchianed", "pepeunchiand",
	"pepeeunchained", "peepunchained", "pepunchained", "ppepeunchained", "pepuunchaned",
	"pepeunchainedairdrop", "pepeunchained-airdrop", "pepeunchainedfree", "pepeunchained-mint",
	"pepeunchainedmint", "pepeunchained-mintnow", "pepeunchainedclaim", "pepeunchained-claim",
	"pepeunchainedpresale", "pepeunchained-sale", "pepeunchainedbuy", "pepeuнchainedapp",
	"pepeunchainedlogin", "pepeunchainedwallet", "pepeunchainedportal", "pepeunchainedsupport",
	"pepeunchained-support", "pepeunchainedadmin", "pepeunchained-team", "pepeunchainedofficial",
	"pepeunchainedmod", "officialpepeunchained", "pepu-token", "pepe-token", "pepe-token-claim",
	"pepu-token-airdrop", "realpepeunchained", "realpepu", "buy-pepeunchained", "buy-pepu",
	"pepeunchained-nft", "pepewallet", "pepuwallet", "рeрeunchаіned.com", "ⲣeⲣeunchained",
	"pepeunÑhаіned", "рepeunchаined", "рeрeunchаіned", "pepeunÑhained",
}

// BannedWords returns a copy of the denylist.
func BannedWords() []string {
	out := make([]string, len(bannedWords))
	copy(out, bannedWords)
	return out
}

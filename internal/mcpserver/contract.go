package mcpserver

// CardFormatContract describes the YAML card files read by the importer.
const CardFormatContract = `# Tally Card File Format

The importer loads every *.yaml (or *.yml) file in the import directory.
Each file holds one card, or a list of cards under a top-level ` + "`cards:`" + ` key.
Cards are matched by name: an existing card keeps its votes and counters,
and only its descriptive fields are replaced.

## Structure

` + "```" + `yaml
name: Jane Doe               # REQUIRED, unique across all cards
type: person                 # REQUIRED, person | organization
industry: Journalism         # REQUIRED, industry for organizations, field for persons
country: Norway              # REQUIRED
side: good                   # REQUIRED, good | bad
description: |               # REQUIRED
  What the card is about.
links:                       # OPTIONAL, at most 10, blank entries are dropped
  - https://example.com/article
image_url: https://example.com/jane.png   # OPTIONAL
` + "```" + `

## Rules

1. Votes are never imported. Counters are recomputed from recorded votes
   after every import.
2. ` + "`type`" + ` and ` + "`side`" + ` are case-insensitive and stored lower-case.
3. A file that fails validation is skipped and reported; other files still load.
`

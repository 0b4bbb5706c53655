package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/ruteri/metadata-governance-backend/api/clients"
	"github.com/ruteri/metadata-governance-backend/beans"
	"github.com/ruteri/metadata-governance-backend/cmd/flags"
	"github.com/ruteri/metadata-governance-backend/handlers"
	"github.com/ruteri/metadata-governance-backend/interfaces"
	"github.com/urfave/cli/v2"
)

var flagElement = &cli.StringFlag{
	Name:     "element",
	Required: true,
	Usage:    "GUID of the element the identifier belongs to",
}

var flagScope = &cli.StringFlag{
	Name:     "scope",
	Required: true,
	Usage:    "GUID of the element scoping the identifier, usually the third party's software server",
}

var flagIdentifier = &cli.StringFlag{
	Name:     "identifier",
	Required: true,
	Usage:    "identifier used by the third party",
}

var flagUsage = &cli.StringFlag{
	Name:  "usage",
	Usage: "how the third party uses the identifier",
}

var flagKeyPattern = &cli.StringFlag{
	Name:  "key-pattern",
	Value: string(beans.LocalKey),
	Usage: "key pattern of the identifier",
}

var flagSync = &cli.StringFlag{
	Name:  "synchronization",
	Value: string(beans.BothDirections),
	Usage: "permitted synchronization direction",
}

var flagPageSize = &cli.IntFlag{
	Name:  "page-size",
	Usage: "maximum number of results, 0 for the server maximum",
}

func newClient(cCtx *cli.Context) *clients.MetadataClient {
	return &clients.MetadataClient{
		ServerAddr: cCtx.String(flags.ServerAddrFlag.Name),
		UserID:     cCtx.String(flags.UserFlag.Name),
	}
}

func correlation(cCtx *cli.Context) handlers.Correlation {
	return handlers.Correlation{
		ElementGUID: cCtx.String(flagElement.Name),
		Identifier:  cCtx.String(flagIdentifier.Name),
		ScopeGUID:   cCtx.String(flagScope.Name),
	}
}

func paging(cCtx *cli.Context) interfaces.Paging {
	return interfaces.Paging{PageSize: cCtx.Int(flagPageSize.Name)}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	app := &cli.App{
		Name:  "metadata client",
		Usage: "Maintain external identifiers and inspect a metadata governance server",
		Flags: []cli.Flag{
			flags.ServerAddrFlag,
			flags.UserFlag,
		},
		Commands: []*cli.Command{
			{
				Name:  "external-id",
				Usage: "correlate elements with the identifiers third parties use for them",
				Subcommands: []*cli.Command{
					{
						Name:  "set",
						Usage: "set up an identifier for an element",
						Flags: []cli.Flag{flagElement, flagScope, flagIdentifier, flagUsage, flagKeyPattern, flagSync},
						Action: func(cCtx *cli.Context) error {
							guid, err := newClient(cCtx).SetUpExternalIdentifier(correlation(cCtx), beans.ExternalIdentifierProperties{
								Usage:                    cCtx.String(flagUsage.Name),
								KeyPattern:               beans.KeyPattern(cCtx.String(flagKeyPattern.Name)),
								PermittedSynchronization: beans.SynchronizationDirection(cCtx.String(flagSync.Name)),
							})
							if err != nil {
								return err
							}
							fmt.Println(guid)
							return nil
						},
					},
					{
						Name:  "confirm",
						Usage: "record that the element was synchronized with the third party",
						Flags: []cli.Flag{flagElement, flagScope, flagIdentifier},
						Action: func(cCtx *cli.Context) error {
							externalID, err := newClient(cCtx).ConfirmSynchronization(correlation(cCtx))
							if err != nil {
								return err
							}
							return printJSON(externalID)
						},
					},
					{
						Name:  "remove",
						Usage: "unlink an identifier from an element",
						Flags: []cli.Flag{flagElement, flagScope, flagIdentifier},
						Action: func(cCtx *cli.Context) error {
							return newClient(cCtx).RemoveExternalIdentifier(correlation(cCtx))
						},
					},
					{
						Name:  "get",
						Usage: "show an identifier",
						Flags: []cli.Flag{flagScope, flagIdentifier},
						Action: func(cCtx *cli.Context) error {
							externalID, err := newClient(cCtx).GetExternalIdentifier(cCtx.String(flagScope.Name), cCtx.String(flagIdentifier.Name))
							if err != nil {
								return err
							}
							return printJSON(externalID)
						},
					},
					{
						Name:  "elements",
						Usage: "list the elements an identifier is linked to",
						Flags: []cli.Flag{flagScope, flagIdentifier, flagPageSize},
						Action: func(cCtx *cli.Context) error {
							elements, err := newClient(cCtx).GetElementsForExternalIdentifier(cCtx.String(flagScope.Name), cCtx.String(flagIdentifier.Name), paging(cCtx))
							if err != nil {
								return err
							}
							return printJSON(elements)
						},
					},
					{
						Name:  "list",
						Usage: "list the identifiers of an element",
						Flags: []cli.Flag{
							flagElement,
							&cli.StringFlag{Name: "scope", Usage: "only identifiers in this scope"},
							flagPageSize,
						},
						Action: func(cCtx *cli.Context) error {
							externalIDs, err := newClient(cCtx).GetExternalIdentifiersForElement(cCtx.String(flagElement.Name), cCtx.String("scope"), paging(cCtx))
							if err != nil {
								return err
							}
							return printJSON(externalIDs)
						},
					},
				},
			},
			{
				Name:  "infrastructure",
				Usage: "register and search IT infrastructure and software capabilities",
				Subcommands: []*cli.Command{
					{
						Name:  "create",
						Usage: "create an asset",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "type", Value: interfaces.ITInfrastructureTypeName, Usage: "asset type, e.g. Host or SoftwareServer"},
							&cli.StringFlag{Name: "qualified-name", Required: true},
							&cli.StringFlag{Name: "name"},
							&cli.StringFlag{Name: "description"},
						},
						Action: func(cCtx *cli.Context) error {
							guid, err := newClient(cCtx).CreateInfrastructure(beans.InfrastructureProperties{
								TypeName:      cCtx.String("type"),
								QualifiedName: cCtx.String("qualified-name"),
								Name:          cCtx.String("name"),
								Description:   cCtx.String("description"),
							})
							if err != nil {
								return err
							}
							fmt.Println(guid)
							return nil
						},
					},
					{
						Name:      "find",
						Usage:     "search assets by a regular expression over their names",
						ArgsUsage: "<regexp>",
						Flags:     []cli.Flag{flagPageSize},
						Action: func(cCtx *cli.Context) error {
							found, err := newClient(cCtx).FindInfrastructure(cCtx.Args().First(), paging(cCtx))
							if err != nil {
								return err
							}
							return printJSON(found)
						},
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

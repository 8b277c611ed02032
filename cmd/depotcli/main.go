// Command depotcli drives the Repository API from a terminal: create,
// save, commit, and retrieve documents; add, borrow, return, and delete
// bag messages. It is a thin flag/argv wrapper — all the behavior lives in
// the repository and facade packages.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"xdao.co/depot/facade"
	"xdao.co/depot/model"
	"xdao.co/depot/notary"
	"xdao.co/depot/repository"
	"xdao.co/depot/storage/driverregistry"

	_ "xdao.co/depot/storage/httpdriver"
	_ "xdao.co/depot/storage/localfs"
	_ "xdao.co/depot/storage/objectstore"
)

// commonFlags holds the flags every subcommand needs to open a driver and
// a notary before doing anything domain-specific.
type commonFlags struct {
	backend      string
	listBackends bool
	signerSeed   string
}

func (c *commonFlags) add(fs *flag.FlagSet) {
	fs.StringVar(&c.backend, "backend", "localfs", "storage backend to use (see -list-backends)")
	fs.BoolVar(&c.listBackends, "list-backends", false, "list available storage backends and exit")
	fs.StringVar(&c.signerSeed, "signer-seed", "", "hex seed for a deterministic Ed25519 notary (dev/test only; empty generates a fresh key)")
	driverregistry.RegisterFlags(fs, driverregistry.UsageCLI)
}

func (c *commonFlags) maybeListBackends() {
	if !c.listBackends {
		return
	}
	for _, b := range driverregistry.List(driverregistry.UsageCLI) {
		fmt.Printf("%s\t%s\n", b.Name, b.Description)
	}
	os.Exit(0)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "create":
		err = cmdCreate(os.Args[2:])
	case "save":
		err = cmdSave(os.Args[2:])
	case "retrieve":
		err = cmdRetrieve(os.Args[2:])
	case "discard":
		err = cmdDiscard(os.Args[2:])
	case "commit":
		err = cmdCommit(os.Args[2:])
	case "name":
		err = cmdName(os.Args[2:])
	case "add-message":
		err = cmdAddMessage(os.Args[2:])
	case "borrow-message":
		err = cmdBorrowMessage(os.Args[2:])
	case "return-message":
		err = cmdReturnMessage(os.Args[2:])
	case "delete-message":
		err = cmdDeleteMessage(os.Args[2:])
	case "message-count":
		err = cmdMessageCount(os.Args[2:])
	case "help", "-h", "-help", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "depotcli: unknown subcommand %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "depotcli: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `depotcli <subcommand> [flags]

Subcommands:
  create           create a draft from a type's default attributes
  save              store a draft's content
  retrieve          read a draft's content
  discard           delete a draft
  commit            notarize, write, and name a document
  name              resolve a name to content
  add-message       enqueue a message onto a bag
  borrow-message    borrow the next available message from a bag
  return-message    release a borrowed message back to its bag
  delete-message    acknowledge (permanently remove) a borrowed message
  message-count     estimate a bag's available message count

Run 'depotcli <subcommand> -h' for subcommand flags.`)
}

func openRepository(cf *commonFlags) (*repository.Repository, func() error, error) {
	cf.maybeListBackends()
	driver, closeFn, err := driverregistry.Open(cf.backend, driverregistry.UsageCLI)
	if err != nil {
		return nil, nil, fmt.Errorf("open backend %q: %w", cf.backend, err)
	}
	if closeFn == nil {
		closeFn = func() error { return nil }
	}

	n, err := openNotary(cf)
	if err != nil {
		return nil, nil, err
	}

	f := facade.New(driver, n, facade.Config{})
	return repository.New(f), closeFn, nil
}

func openNotary(cf *commonFlags) (notary.Notary, error) {
	if cf.signerSeed != "" {
		n, _, err := notary.NewEd25519FromHexSeed(cf.signerSeed)
		if err != nil {
			return nil, fmt.Errorf("construct seeded notary: %w", err)
		}
		return n, nil
	}
	n, _, err := notary.NewEd25519()
	if err != nil {
		return nil, fmt.Errorf("construct notary: %w", err)
	}
	return n, nil
}

func parseVersion(s string) (model.Version, error) {
	if s == "" {
		s = "1.0.0"
	}
	return model.ParseVersion(s)
}

func cmdCreate(args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	cf := &commonFlags{}
	cf.add(fs)
	typeName := fs.String("type", "", "type document name to base the draft on")
	templatePath := fs.String("template", "", "path to template content (defaults to empty)")
	fs.Parse(args)

	repo, closeFn, err := openRepository(cf)
	if err != nil {
		return err
	}
	defer closeFn()

	template, err := readFileOrEmpty(*templatePath)
	if err != nil {
		return err
	}

	draft, err := repo.CreateDocument(context.Background(), *typeName, nil, template)
	if err != nil {
		return err
	}
	os.Stdout.Write(draft.Content)
	return nil
}

func cmdSave(args []string) error {
	fs := flag.NewFlagSet("save", flag.ExitOnError)
	cf := &commonFlags{}
	cf.add(fs)
	tag := fs.String("tag", "", "draft tag")
	version := fs.String("version", "", "draft version (default 1.0.0)")
	contentPath := fs.String("content", "", "path to content, or '-' for stdin")
	fs.Parse(args)

	repo, closeFn, err := openRepository(cf)
	if err != nil {
		return err
	}
	defer closeFn()

	v, err := parseVersion(*version)
	if err != nil {
		return err
	}
	content, err := readFileOrStdin(*contentPath)
	if err != nil {
		return err
	}
	return repo.SaveDocument(context.Background(), *tag, v, content)
}

func cmdRetrieve(args []string) error {
	fs := flag.NewFlagSet("retrieve", flag.ExitOnError)
	cf := &commonFlags{}
	cf.add(fs)
	tag := fs.String("tag", "", "draft tag")
	version := fs.String("version", "", "draft version")
	fs.Parse(args)

	repo, closeFn, err := openRepository(cf)
	if err != nil {
		return err
	}
	defer closeFn()

	v, err := parseVersion(*version)
	if err != nil {
		return err
	}
	citation := model.Citation{Tag: *tag, Version: v}
	content, found, err := repo.RetrieveDocument(context.Background(), citation)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no draft at %s/%s", *tag, v.String())
	}
	os.Stdout.Write(content)
	return nil
}

func cmdDiscard(args []string) error {
	fs := flag.NewFlagSet("discard", flag.ExitOnError)
	cf := &commonFlags{}
	cf.add(fs)
	tag := fs.String("tag", "", "draft tag")
	version := fs.String("version", "", "draft version")
	fs.Parse(args)

	repo, closeFn, err := openRepository(cf)
	if err != nil {
		return err
	}
	defer closeFn()

	v, err := parseVersion(*version)
	if err != nil {
		return err
	}
	existed, err := repo.DiscardDocument(context.Background(), model.Citation{Tag: *tag, Version: v})
	if err != nil {
		return err
	}
	fmt.Println(existed)
	return nil
}

func cmdCommit(args []string) error {
	fs := flag.NewFlagSet("commit", flag.ExitOnError)
	cf := &commonFlags{}
	cf.add(fs)
	name := fs.String("name", "", "name to bind the committed citation to")
	tag := fs.String("tag", "", "document tag")
	version := fs.String("version", "", "document version")
	contentPath := fs.String("content", "", "path to content, or '-' for stdin")
	fs.Parse(args)

	repo, closeFn, err := openRepository(cf)
	if err != nil {
		return err
	}
	defer closeFn()

	v, err := parseVersion(*version)
	if err != nil {
		return err
	}
	content, err := readFileOrStdin(*contentPath)
	if err != nil {
		return err
	}
	citation, err := repo.CommitDocument(context.Background(), *name, *tag, v, content)
	if err != nil {
		return err
	}
	fmt.Printf("%s/%s\n", citation.Tag, citation.Version.String())
	return nil
}

func cmdName(args []string) error {
	fs := flag.NewFlagSet("name", flag.ExitOnError)
	cf := &commonFlags{}
	cf.add(fs)
	name := fs.String("name", "", "name to resolve")
	fs.Parse(args)

	repo, closeFn, err := openRepository(cf)
	if err != nil {
		return err
	}
	defer closeFn()

	content, found, err := repo.RetrieveName(context.Background(), *name)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("name %q is not bound", *name)
	}
	os.Stdout.Write(content)
	return nil
}

func bagCitation(fs *flag.FlagSet) (*string, *string) {
	return fs.String("bag-tag", "", "bag tag"), fs.String("bag-version", "", "bag version")
}

func cmdAddMessage(args []string) error {
	fs := flag.NewFlagSet("add-message", flag.ExitOnError)
	cf := &commonFlags{}
	cf.add(fs)
	bagTag, bagVersion := bagCitation(fs)
	msgTag := fs.String("tag", "", "message tag")
	msgVersion := fs.String("version", "", "message version")
	contentPath := fs.String("content", "", "path to content, or '-' for stdin")
	fs.Parse(args)

	repo, closeFn, err := openRepository(cf)
	if err != nil {
		return err
	}
	defer closeFn()

	bag, err := bagFromFlags(*bagTag, *bagVersion)
	if err != nil {
		return err
	}
	mv, err := parseVersion(*msgVersion)
	if err != nil {
		return err
	}
	content, err := readFileOrStdin(*contentPath)
	if err != nil {
		return err
	}
	msg, err := repo.AddMessage(context.Background(), bag, *msgTag, mv, content)
	if err != nil {
		return err
	}
	fmt.Printf("%s/%s\n", msg.Citation.Tag, msg.Citation.Version.String())
	return nil
}

func cmdBorrowMessage(args []string) error {
	fs := flag.NewFlagSet("borrow-message", flag.ExitOnError)
	cf := &commonFlags{}
	cf.add(fs)
	bagTag, bagVersion := bagCitation(fs)
	fs.Parse(args)

	repo, closeFn, err := openRepository(cf)
	if err != nil {
		return err
	}
	defer closeFn()

	bag, err := bagFromFlags(*bagTag, *bagVersion)
	if err != nil {
		return err
	}
	msg, found, err := repo.BorrowMessage(context.Background(), bag)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("bag %s has no available messages", bag.Tag)
	}
	fmt.Printf("%s/%s\n", msg.Citation.Tag, msg.Citation.Version.String())
	os.Stdout.Write(msg.Content)
	return nil
}

func cmdReturnMessage(args []string) error {
	fs := flag.NewFlagSet("return-message", flag.ExitOnError)
	cf := &commonFlags{}
	cf.add(fs)
	bagTag, bagVersion := bagCitation(fs)
	msgTag := fs.String("tag", "", "message tag")
	msgVersion := fs.String("version", "", "message version (the processing version)")
	contentPath := fs.String("content", "", "path to content, or '-' for stdin")
	fs.Parse(args)

	repo, closeFn, err := openRepository(cf)
	if err != nil {
		return err
	}
	defer closeFn()

	msg, err := messageFromFlags(*bagTag, *bagVersion, *msgTag, *msgVersion, *contentPath)
	if err != nil {
		return err
	}
	released, err := repo.ReturnMessage(context.Background(), msg)
	if err != nil {
		return err
	}
	fmt.Printf("%s/%s\n", released.Citation.Tag, released.Citation.Version.String())
	return nil
}

func cmdDeleteMessage(args []string) error {
	fs := flag.NewFlagSet("delete-message", flag.ExitOnError)
	cf := &commonFlags{}
	cf.add(fs)
	bagTag, bagVersion := bagCitation(fs)
	msgTag := fs.String("tag", "", "message tag")
	msgVersion := fs.String("version", "", "message version (the processing version)")
	fs.Parse(args)

	repo, closeFn, err := openRepository(cf)
	if err != nil {
		return err
	}
	defer closeFn()

	msg, err := messageFromFlags(*bagTag, *bagVersion, *msgTag, *msgVersion, "")
	if err != nil {
		return err
	}
	consumed, err := repo.DeleteMessage(context.Background(), msg)
	if err != nil {
		return err
	}
	os.Stdout.Write(consumed.Content)
	return nil
}

func cmdMessageCount(args []string) error {
	fs := flag.NewFlagSet("message-count", flag.ExitOnError)
	cf := &commonFlags{}
	cf.add(fs)
	bagTag, bagVersion := bagCitation(fs)
	fs.Parse(args)

	repo, closeFn, err := openRepository(cf)
	if err != nil {
		return err
	}
	defer closeFn()

	bag, err := bagFromFlags(*bagTag, *bagVersion)
	if err != nil {
		return err
	}
	n, err := repo.MessageCount(context.Background(), bag)
	if err != nil {
		return err
	}
	fmt.Println(n)
	return nil
}

func bagFromFlags(tag, version string) (model.Citation, error) {
	if tag == "" {
		return model.Citation{}, fmt.Errorf("missing -bag-tag")
	}
	v, err := parseVersion(version)
	if err != nil {
		return model.Citation{}, err
	}
	return model.Citation{Tag: tag, Version: v}, nil
}

func messageFromFlags(bagTag, bagVersion, msgTag, msgVersion, contentPath string) (model.Message, error) {
	bag, err := bagFromFlags(bagTag, bagVersion)
	if err != nil {
		return model.Message{}, err
	}
	mv, err := parseVersion(msgVersion)
	if err != nil {
		return model.Message{}, err
	}
	content, err := readFileOrEmpty(contentPath)
	if err != nil {
		return model.Message{}, err
	}
	return model.Message{
		BagTag:     bag.Tag,
		BagVersion: bag.Version,
		State:      model.StateProcessing,
		Citation:   model.Citation{Tag: msgTag, Version: mv},
		Content:    content,
	}, nil
}

func readFileOrStdin(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return readAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func readFileOrEmpty(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	return readFileOrStdin(path)
}

func readAll(f *os.File) ([]byte, error) {
	var sb strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			sb.Write(buf[:n])
		}
		if err != nil {
			break
		}
	}
	return []byte(sb.String()), nil
}

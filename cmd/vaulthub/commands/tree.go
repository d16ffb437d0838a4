package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/stvaults/vaulthub/crypto/merkle"
	"github.com/stvaults/vaulthub/types"
	"github.com/stvaults/vaulthub/version"
)

// TreeDump is the output of tree build: every leaf with its proof.
type TreeDump struct {
	Format string      `json:"format"`
	Root   common.Hash `json:"root"`
	Leaves []LeafProof `json:"leaves"`
}

// LeafProof is one leaf of a TreeDump.
type LeafProof struct {
	Leaf  types.VaultLeaf `json:"leaf"`
	Hash  common.Hash     `json:"hash"`
	Proof []common.Hash   `json:"proof"`
}

// MakeTreeCommand returns the report tree tooling used by reporters and
// auditors off-line.
func MakeTreeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Build and check report trees",
	}
	cmd.AddCommand(makeTreeBuildCommand(), makeTreeVerifyCommand())
	return cmd
}

func makeTreeBuildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "build [leaves.json]",
		Short: "Build a report tree from a JSON array of vault leaves",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var leaves []types.VaultLeaf
			if err := readJSON(args[0], &leaves); err != nil {
				return err
			}
			dump, err := BuildTree(leaves)
			if err != nil {
				return err
			}
			return writeJSON(cmd, dump)
		},
	}
}

func makeTreeVerifyCommand() *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "verify [proof.json]",
		Short: "Check a leaf proof, as printed by tree build, against a root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var lp LeafProof
			if err := readJSON(args[0], &lp); err != nil {
				return err
			}
			if err := VerifyLeaf(common.HexToHash(root), lp); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "root", "", "hex encoded tree root")
	_ = cmd.MarkFlagRequired("root")
	return cmd
}

// BuildTree hashes leaves and returns the tree with a proof per leaf.
func BuildTree(leaves []types.VaultLeaf) (*TreeDump, error) {
	if len(leaves) == 0 {
		return nil, errors.New("no leaves")
	}
	hashes := make([]common.Hash, len(leaves))
	for i, leaf := range leaves {
		if err := leaf.ValidateBasic(); err != nil {
			return nil, fmt.Errorf("leaf %d: %w", i, err)
		}
		h, err := leaf.Hash()
		if err != nil {
			return nil, fmt.Errorf("leaf %d: %w", i, err)
		}
		hashes[i] = h
	}
	tree, err := merkle.NewTree(hashes)
	if err != nil {
		return nil, err
	}

	dump := &TreeDump{
		Format: version.ReportFormat,
		Root:   tree.Root(),
		Leaves: make([]LeafProof, len(leaves)),
	}
	for i, leaf := range leaves {
		proof, err := tree.Proof(hashes[i])
		if err != nil {
			return nil, err
		}
		if proof == nil {
			proof = []common.Hash{}
		}
		dump.Leaves[i] = LeafProof{Leaf: leaf, Hash: hashes[i], Proof: proof}
	}
	return dump, nil
}

// VerifyLeaf checks that lp proves its leaf under root.
func VerifyLeaf(root common.Hash, lp LeafProof) error {
	h, err := lp.Leaf.Hash()
	if err != nil {
		return err
	}
	if h != lp.Hash {
		return fmt.Errorf("%w: leaf hashes to %s, not %s", types.ErrInvalidProof, h, lp.Hash)
	}
	if !merkle.VerifyProof(lp.Proof, root, h) {
		return fmt.Errorf("%w: root %s", types.ErrInvalidProof, root)
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	bz, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(bz, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	bz, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(bz))
	return nil
}

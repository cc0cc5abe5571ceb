package layout

import "fmt"

// Script payloads evaluated against the loaded report page. They are plain
// JS strings so they can be unit tested and diffed as data; bump the
// version when any payload changes so captures are attributable to a
// payload revision.
const ScriptVersion = "v3"

// hideChromeScript removes the interactive surface before capture: nav
// bars, buttons, the back-to-dashboard link, and anything flagged
// non-printable.
const hideChromeScript = `(() => {
	const selectors = [
		'nav',
		'.navbar',
		'.sidebar',
		'.toolbar',
		'button',
		'.btn',
		'a[href*="dashboard"]',
		'.back-to-dashboard',
		'[data-noprint]',
		'.no-print'
	];
	for (const sel of selectors) {
		for (const el of document.querySelectorAll(sel)) {
			el.style.setProperty('display', 'none', 'important');
		}
	}
	return true;
})()`

// galleryScript constrains embedded photo evidence so oversized uploads
// cannot blow out a page. Explicit width/height attributes are stripped
// because they override the max-size rules. The comments/photographs
// section is located by heading text since templates do not share a stable
// class for it, and its grid containers are normalized to a fixed gap so
// photo cells neither collapse nor straddle a page boundary.
const galleryScript = `(() => {
	const constrain = (img, maxW, maxH) => {
		img.removeAttribute('width');
		img.removeAttribute('height');
		img.style.maxWidth = maxW;
		img.style.maxHeight = maxH;
		img.style.width = 'auto';
		img.style.height = 'auto';
		img.style.objectFit = 'contain';
		img.style.display = 'block';
		img.style.margin = '0 auto';
	};

	for (const img of document.querySelectorAll('img')) {
		constrain(img, '6.5in', '4.5in');
	}

	const headings = document.querySelectorAll('h1, h2, h3, h4, legend, .section-title');
	for (const h of headings) {
		const text = (h.textContent || '').toLowerCase();
		if (!(text.includes('comment') && text.includes('photograph'))) {
			continue;
		}
		const section = h.closest('section, fieldset, div') || h.parentElement;
		if (!section) {
			continue;
		}
		for (const img of section.querySelectorAll('img')) {
			constrain(img, '3.1in', '2.4in');
		}
		for (const grid of section.querySelectorAll('.grid, .photo-grid, [class*="gallery"]')) {
			grid.style.display = 'grid';
			grid.style.gridTemplateColumns = 'repeat(2, 1fr)';
			grid.style.gap = '0.15in';
			grid.style.alignItems = 'start';
		}
	}
	return true;
})()`

// printStyleTemplate is the injected page-level stylesheet: exact paper
// size, print-exact colors, and a last sweep over residual non-printable
// elements. The %s is the page orientation.
const printStyleTemplate = `(() => {
	const css = ` + "`" + `
		@page {
			size: letter %s;
			margin: 0;
		}
		html, body {
			-webkit-print-color-adjust: exact;
			print-color-adjust: exact;
			background: #fff;
		}
		.no-print, [data-noprint] {
			display: none !important;
		}
		table {
			page-break-inside: auto;
		}
		tr {
			page-break-inside: avoid;
		}
	` + "`" + `;
	const style = document.createElement('style');
	style.setAttribute('data-export-style', '%s');
	style.textContent = css;
	document.head.appendChild(style);
	return true;
})()`

func printStyleScript(orientation string) string {
	return fmt.Sprintf(printStyleTemplate, orientation, ScriptVersion)
}
